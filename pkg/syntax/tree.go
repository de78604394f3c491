// Package syntax lowers Rust source parsed by tree-sitter into an immutable,
// typed tree of the items the assists operate on: enums with their variants,
// generic parameter lists, trait declarations and impl blocks.
package syntax

import "strings"

// TextRange is a half-open byte range [Start, End) into a file's source.
type TextRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r TextRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether offset lies inside the range. Both ends are
// inclusive so that a cursor placed right after a node still selects it.
func (r TextRange) Contains(offset int) bool {
	return r.Start <= offset && offset <= r.End
}

// File is a parsed Rust source file.
type File struct {
	Path   string
	Source string

	// Enums lists every enum in source order, including those nested in
	// inline modules and block expressions.
	Enums  []*EnumDecl
	Impls  []*ImplDecl
	Traits []*TraitDecl

	// HasErrors is set when tree-sitter had to recover from syntax errors.
	HasErrors bool
}

// Slice returns the source text covered by r.
func (f *File) Slice(r TextRange) string {
	if r.Start < 0 || r.End > len(f.Source) || r.Start > r.End {
		return ""
	}

	return f.Source[r.Start:r.End]
}

// FindEnclosingVariant returns the innermost variant whose range contains
// offset, or nil when the offset is outside every variant.
func (f *File) FindEnclosingVariant(offset int) *Variant {
	var best *Variant

	for _, enum := range f.Enums {
		if !enum.Range.Contains(offset) {
			continue
		}

		for _, variant := range enum.Variants {
			if !variant.Range.Contains(offset) {
				continue
			}

			if best == nil || variant.Range.Len() < best.Range.Len() {
				best = variant
			}
		}
	}

	return best
}

// Variants returns all variants of all enums in source order.
func (f *File) Variants() []*Variant {
	var out []*Variant

	for _, enum := range f.Enums {
		out = append(out, enum.Variants...)
	}

	return out
}

// EnumDecl is an `enum` item.
type EnumDecl struct {
	file *File

	// Name is empty when the declaration has no parsable name.
	Name      string
	NameRange TextRange

	// Generics is nil when the enum declares no generic parameters.
	Generics *GenericParamList
	Variants []*Variant

	// Module is the `::`-joined path of inline modules enclosing the enum,
	// empty at the crate root.
	Module string

	// Block is the innermost block expression declaring the enum, nil for
	// module-level enums.
	Block *TextRange
	Range TextRange
}

// File returns the file that declares the enum.
func (e *EnumDecl) File() *File {
	return e.file
}

// Path returns the module-qualified name of the enum.
func (e *EnumDecl) Path() string {
	return joinPath(e.Module, e.Name)
}

// Variant is one alternative of an enum.
type Variant struct {
	enum *EnumDecl

	// Name is empty when the variant has no parsable name.
	Name  string
	Shape Shape
	Range TextRange
}

// Enum returns the enum the variant belongs to.
func (v *Variant) Enum() *EnumDecl {
	return v.enum
}

// Index returns the position of the variant inside its enum, or -1 when the
// variant is detached.
func (v *Variant) Index() int {
	if v.enum == nil {
		return -1
	}

	for idx, other := range v.enum.Variants {
		if other == v {
			return idx
		}
	}

	return -1
}

// TypeRef is a type written in source. Text is the verbatim source slice.
// Tokens are its leaf tokens without comments or trailing argument commas.
type TypeRef struct {
	Text   string
	Tokens []string

	// Path and Args are set for named types: `a::B<X, Y>` has the path
	// `a::B` and the arguments X and Y. Path is empty for other types.
	Path string
	Args []*TypeRef

	Range TextRange
}

// GenericParamKind distinguishes entries of a generic parameter list.
type GenericParamKind uint8

// Generic parameter kinds.
const (
	LifetimeParam GenericParamKind = iota
	TypeParam
	ConstParam
)

func (k GenericParamKind) String() string {
	switch k {
	case LifetimeParam:
		return "lifetime"
	case TypeParam:
		return "type"
	case ConstParam:
		return "const"
	default:
		return "unknown"
	}
}

// GenericParam is a single declared generic parameter. Lifetime names keep
// their leading apostrophe.
type GenericParam struct {
	Kind   GenericParamKind
	Name   string
	Bounds string
}

// GenericParamList is a `<...>` parameter list as declared, bounds included.
type GenericParamList struct {
	Text   string
	Params []GenericParam
	Range  TextRange
}

// Names returns lifetime names in declaration order followed by type
// parameter names in declaration order. Const parameters are not included.
func (l *GenericParamList) Names() []string {
	if l == nil {
		return nil
	}

	names := make([]string, 0, len(l.Params))

	for _, kind := range []GenericParamKind{LifetimeParam, TypeParam} {
		for _, param := range l.Params {
			if param.Kind == kind && param.Name != "" {
				names = append(names, param.Name)
			}
		}
	}

	return names
}

// Lookup returns the position of the named parameter in declaration order.
func (l *GenericParamList) Lookup(name string) (int, bool) {
	if l == nil {
		return 0, false
	}

	for idx, param := range l.Params {
		if param.Name == name {
			return idx, true
		}
	}

	return 0, false
}

// ImplDecl is an `impl` block.
type ImplDecl struct {
	Generics *GenericParamList

	// Trait is nil for inherent impls.
	Trait    *TypeRef
	SelfType *TypeRef
	Module   string

	// Block is set for impls inside a block expression.
	Block *TextRange
	Range TextRange
}

// TraitDecl is a `trait` item.
type TraitDecl struct {
	Name     string
	Generics *GenericParamList
	Module   string
	Block    *TextRange
	Range    TextRange
}

// Path returns the module-qualified name of the trait.
func (t *TraitDecl) Path() string {
	return joinPath(t.Module, t.Name)
}

// PathSeparator separates path segments.
const PathSeparator = "::"

func joinPath(module, name string) string {
	if module == "" {
		return name
	}

	return strings.Join([]string{module, name}, PathSeparator)
}
