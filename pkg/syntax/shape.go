package syntax

// Shape classifies the fields of a variant. It is a closed sum: the only
// implementations are UnitShape, TupleShape and RecordShape.
type Shape interface {
	shape()

	// FieldCount returns the number of declared fields.
	FieldCount() int
}

// UnitShape is a variant without fields, as in `A`.
type UnitShape struct{}

// TupleShape is a variant with unnamed fields, as in `A(u32, String)`.
type TupleShape struct {
	Fields []TupleField
}

// RecordShape is a variant with named fields, as in `A { x: u32 }`.
type RecordShape struct {
	Fields []RecordField
}

// TupleField is an unnamed field. Type is nil when it could not be parsed.
type TupleField struct {
	Type *TypeRef
}

// RecordField is a named field. Name is empty and Type nil when the
// respective part could not be parsed.
type RecordField struct {
	Name string
	Type *TypeRef
}

func (UnitShape) shape()   {}
func (TupleShape) shape()  {}
func (RecordShape) shape() {}

// FieldCount implements Shape.
func (UnitShape) FieldCount() int { return 0 }

// FieldCount implements Shape.
func (s TupleShape) FieldCount() int { return len(s.Fields) }

// FieldCount implements Shape.
func (s RecordShape) FieldCount() int { return len(s.Fields) }
