// Package semantic answers the questions the assists ask about code
// meaning: which definition a variant is, which compilation unit owns it,
// where the well-known standard traits live, and whether a type already
// implements a trait for given type arguments.
package semantic

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
)

// UnitID identifies a compilation unit (a crate) inside a Database.
type UnitID int

// WellKnownPath names a standard item independently of the crate that
// provides it, e.g. "core::convert::From".
type WellKnownPath string

// Well-known items.
const (
	ConvertFrom WellKnownPath = "core::convert::From"
	ConvertInto WellKnownPath = "core::convert::Into"
)

// EnumDef is the semantic definition of an enum.
type EnumDef struct {
	Unit UnitID
	Path string
	decl *syntax.EnumDecl
}

// Decl returns the syntax the definition was built from. It is nil for
// definitions created outside a Database.
func (e EnumDef) Decl() *syntax.EnumDecl {
	return e.decl
}

// VariantDef is the semantic definition of an enum variant.
type VariantDef struct {
	Enum  EnumDef
	Index int
	Name  string
}

// TraitDef is the semantic definition of a trait.
type TraitDef struct {
	Unit UnitID
	Path string
}

// Type is a semantic type in canonical form. Enum is set when the type is an
// instantiation of an enum known to the model.
type Type struct {
	Repr string
	Enum *EnumDef
}

// Equal reports whether two types are the same.
func (t Type) Equal(other Type) bool {
	if t.Repr != other.Repr {
		return false
	}

	if t.Enum == nil || other.Enum == nil {
		return t.Enum == nil && other.Enum == nil
	}

	return t.Enum.Unit == other.Enum.Unit && t.Enum.Path == other.Enum.Path
}

func (t Type) String() string {
	return t.Repr
}

// Semantics is the capability the assists depend on. Every lookup reports
// failure with a false second result rather than an error; callers treat an
// unresolvable answer as "unknown".
type Semantics interface {
	// ResolveVariant maps a syntax variant to its definition.
	ResolveVariant(variant *syntax.Variant) (VariantDef, bool)
	// ParentEnum returns the enum a variant belongs to.
	ParentEnum(variant VariantDef) EnumDef
	// OwningUnit returns the compilation unit that declares the enum.
	OwningUnit(enum EnumDef) UnitID
	// EnumType returns the enum's type instantiated with its own generic
	// parameters.
	EnumType(enum EnumDef) Type
	// FamousTrait looks up a well-known trait as seen from unit.
	FamousTrait(unit UnitID, path WellKnownPath) (TraitDef, bool)
	// FieldType returns the type of the index-th field of a variant.
	FieldType(variant VariantDef, index int) (Type, bool)
	// Implements reports whether ty implements trait with the given type
	// arguments.
	Implements(ty Type, trait TraitDef, args []Type) bool
}

// CanonicalType renders a type in canonical form: tokens without layout,
// comments or a leading `::`, with each name in params replaced by a
// positional placeholder `$i`.
func CanonicalType(ref *syntax.TypeRef, params []string) string {
	if ref == nil {
		return ""
	}

	tokens := ref.Tokens
	if len(tokens) > 0 && tokens[0] == syntax.PathSeparator {
		tokens = tokens[1:]
	}

	var sb strings.Builder

	prev := ""

	for idx, tok := range tokens {
		if idx == 0 || tokens[idx-1] != syntax.PathSeparator {
			if pos := slices.Index(params, tok); pos >= 0 {
				tok = placeholder(pos)
			}
		}

		if wordLike(prev) && wordLike(tok) {
			sb.WriteByte(' ')
		}

		sb.WriteString(tok)
		prev = tok
	}

	return sb.String()
}

func placeholder(pos int) string {
	return "$" + strconv.Itoa(pos)
}

func wordLike(tok string) bool {
	if tok == "" {
		return false
	}

	ch := tok[0]

	return ch == '\'' || ch == '$' || ch == '_' || ch == '"' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
