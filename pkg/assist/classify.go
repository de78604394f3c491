package assist

import "github.com/Sumatoshi-tech/rustassist/pkg/syntax"

// Classified is a variant accepted by the classifier: it has exactly one
// field whose type (and name, for record variants) is known.
type Classified struct {
	Variant *syntax.Variant
	Enum    *syntax.EnumDecl

	VariantName string
	EnumName    string

	// Generics is nil when the enum declares no generic parameters.
	Generics *syntax.GenericParamList

	// FieldName is empty for tuple variants.
	FieldName string
	FieldType *syntax.TypeRef

	// Range is the variant's text range, used as the applicability range.
	Range syntax.TextRange
}

// Named reports whether the single field is a named record field.
func (c *Classified) Named() bool {
	return c.FieldName != ""
}

// Classify finds the variant enclosing offset and checks that its shape is
// supported.
func Classify(file *syntax.File, offset int) (*Classified, Reason) {
	if file == nil {
		return nil, ReasonNoVariant
	}

	variant := file.FindEnclosingVariant(offset)
	if variant == nil {
		return nil, ReasonNoVariant
	}

	return ClassifyVariant(variant)
}

// ClassifyVariant checks that variant has a supported shape.
func ClassifyVariant(variant *syntax.Variant) (*Classified, Reason) {
	enum := variant.Enum()
	if enum == nil || enum.Name == "" {
		return nil, ReasonNoEnumName
	}

	if variant.Name == "" {
		return nil, ReasonNoVariantName
	}

	classified := &Classified{
		Variant:     variant,
		Enum:        enum,
		VariantName: variant.Name,
		EnumName:    enum.Name,
		Generics:    enum.Generics,
		Range:       variant.Range,
	}

	switch shape := variant.Shape.(type) {
	case syntax.UnitShape:
		return nil, ReasonUnitVariant
	case syntax.TupleShape:
		if len(shape.Fields) != 1 {
			return nil, ReasonFieldCount
		}

		if shape.Fields[0].Type == nil {
			return nil, ReasonMissingField
		}

		classified.FieldType = shape.Fields[0].Type
	case syntax.RecordShape:
		if len(shape.Fields) != 1 {
			return nil, ReasonFieldCount
		}

		field := shape.Fields[0]
		if field.Name == "" || field.Type == nil {
			return nil, ReasonMissingField
		}

		classified.FieldName = field.Name
		classified.FieldType = field.Type
	default:
		return nil, ReasonUnitVariant
	}

	return classified, ReasonApplicable
}
