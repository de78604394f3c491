package assist

import "github.com/Sumatoshi-tech/rustassist/pkg/semantic"

// AlreadyConverts reports whether the enum already implements `From` for
// the variant's field type. Anything the semantic model cannot resolve
// counts as "no", so an incomplete model never hides the assist.
func AlreadyConverts(classified *Classified, sem semantic.Semantics) bool {
	if sem == nil {
		return false
	}

	variant, ok := sem.ResolveVariant(classified.Variant)
	if !ok {
		return false
	}

	enum := sem.ParentEnum(variant)

	trait, ok := sem.FamousTrait(sem.OwningUnit(enum), semantic.ConvertFrom)
	if !ok {
		return false
	}

	field, ok := sem.FieldType(variant, 0)
	if !ok {
		return false
	}

	return sem.Implements(sem.EnumType(enum), trait, []semantic.Type{field})
}
