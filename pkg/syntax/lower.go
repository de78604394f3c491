package syntax

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Tree-sitter node kinds of the Rust grammar used during lowering.
const (
	kindEnumItem         = "enum_item"
	kindEnumVariantList  = "enum_variant_list"
	kindEnumVariant      = "enum_variant"
	kindRecordFields     = "field_declaration_list"
	kindTupleFields      = "ordered_field_declaration_list"
	kindFieldDeclaration = "field_declaration"
	kindFieldIdentifier  = "field_identifier"
	kindIdentifier       = "identifier"
	kindTypeIdentifier   = "type_identifier"
	kindTypeParameters   = "type_parameters"
	kindWhereClause      = "where_clause"
	kindImplItem         = "impl_item"
	kindTraitItem        = "trait_item"
	kindModItem          = "mod_item"
	kindDeclarationList  = "declaration_list"
	kindBlock            = "block"
	kindGenericType      = "generic_type"
	kindScopedTypeIdent  = "scoped_type_identifier"
	kindAttributeItem    = "attribute_item"
	kindVisibility       = "visibility_modifier"
	kindLineComment      = "line_comment"
	kindBlockComment     = "block_comment"
	kindError            = "ERROR"

	kindLifetime            = "lifetime"
	kindLifetimeParameter   = "lifetime_parameter"
	kindTypeParameter       = "type_parameter"
	kindConstrainedTypeParm = "constrained_type_parameter"
	kindOptionalTypeParm    = "optional_type_parameter"
	kindConstParameter      = "const_parameter"
	kindTraitBounds         = "trait_bounds"

	kindStringLiteral    = "string_literal"
	kindRawStringLiteral = "raw_string_literal"
	kindCharLiteral      = "char_literal"
)

// scope is where an item is declared: its inline module path and, for items
// inside a function body or other block expression, the innermost block.
type scope struct {
	module string
	block  *TextRange
}

// lowerer converts tree-sitter nodes into the typed tree. Conversion errors
// are rare (offsets that do not fit an int) and only the first is kept.
type lowerer struct {
	src  []byte
	file *File
	err  error
}

func namedChildren(node sitter.Node) []sitter.Node {
	count := node.NamedChildCount()
	children := make([]sitter.Node, 0, count)

	for idx := range count {
		child := node.NamedChild(idx)
		if !child.IsNull() {
			children = append(children, child)
		}
	}

	return children
}

// trivia reports nodes that never carry item structure.
func trivia(kind string) bool {
	switch kind {
	case kindAttributeItem, kindVisibility, kindLineComment, kindBlockComment:
		return true
	default:
		return false
	}
}

func (lw *lowerer) offset(value uint) int {
	converted, err := safecast.Conv[int](value)
	if err != nil {
		if lw.err == nil {
			lw.err = fmt.Errorf("byte offset %d: %w", value, err)
		}

		return 0
	}

	return converted
}

func (lw *lowerer) rangeOf(node sitter.Node) TextRange {
	return TextRange{Start: lw.offset(node.StartByte()), End: lw.offset(node.EndByte())}
}

func (lw *lowerer) text(node sitter.Node) string {
	r := lw.rangeOf(node)
	if r.Start < 0 || r.End > len(lw.src) || r.Start > r.End {
		return ""
	}

	return string(lw.src[r.Start:r.End])
}

func (lw *lowerer) typeRef(node sitter.Node) *TypeRef {
	ref := &TypeRef{
		Text:   lw.text(node),
		Tokens: dropTrailingCommas(lw.tokens(node, nil)),
		Range:  lw.rangeOf(node),
	}

	switch node.Type() {
	case kindTypeIdentifier, kindScopedTypeIdent:
		ref.Path = strings.Join(ref.Tokens, "")
	case kindGenericType:
		if base := node.ChildByFieldName("type"); !base.IsNull() {
			ref.Path = strings.Join(lw.tokens(base, nil), "")
		}

		if args := node.ChildByFieldName("type_arguments"); !args.IsNull() {
			for _, arg := range namedChildren(args) {
				if !trivia(arg.Type()) {
					ref.Args = append(ref.Args, lw.typeRef(arg))
				}
			}
		}
	}

	return ref
}

// atomic reports kinds emitted as a single token although tree-sitter
// gives them children.
func atomic(kind string) bool {
	switch kind {
	case kindLifetime, kindStringLiteral, kindRawStringLiteral, kindCharLiteral:
		return true
	default:
		return false
	}
}

// tokens appends the leaf tokens below node to out, comments excluded.
func (lw *lowerer) tokens(node sitter.Node, out []string) []string {
	kind := node.Type()
	if kind == kindLineComment || kind == kindBlockComment {
		return out
	}

	if node.ChildCount() == 0 || atomic(kind) {
		if text := lw.text(node); text != "" {
			out = append(out, text)
		}

		return out
	}

	for idx := range node.ChildCount() {
		child := node.Child(idx)
		if !child.IsNull() {
			out = lw.tokens(child, out)
		}
	}

	return out
}

// dropTrailingCommas removes a comma closing a generic argument list, so
// `Vec<u32,>` and `Vec<u32>` produce the same tokens.
func dropTrailingCommas(tokens []string) []string {
	out := make([]string, 0, len(tokens))

	for idx, tok := range tokens {
		if tok == "," && idx+1 < len(tokens) && tokens[idx+1] == ">" {
			continue
		}

		out = append(out, tok)
	}

	return out
}

// items lowers the item-level children of a source_file, declaration_list
// or block. Other children are searched for nested blocks.
func (lw *lowerer) items(parent sitter.Node, sc scope) {
	for _, child := range namedChildren(parent) {
		switch child.Type() {
		case kindEnumItem:
			lw.enum(child, sc)
		case kindImplItem:
			lw.impl(child, sc)
		case kindTraitItem:
			lw.trait(child, sc)
		case kindModItem:
			lw.mod(child, sc)
		default:
			lw.blocks(child, sc)
		}
	}
}

// blocks lowers the items of every block expression below node: function
// bodies, const and static initializers, closures and nested blocks.
func (lw *lowerer) blocks(node sitter.Node, sc scope) {
	for _, child := range namedChildren(node) {
		if child.Type() != kindBlock {
			lw.blocks(child, sc)

			continue
		}

		block := lw.rangeOf(child)
		lw.items(child, scope{module: sc.module, block: &block})
	}
}

func (lw *lowerer) mod(node sitter.Node, sc scope) {
	var name string

	for _, child := range namedChildren(node) {
		switch child.Type() {
		case kindIdentifier:
			if name == "" {
				name = lw.text(child)
			}
		case kindDeclarationList:
			lw.items(child, scope{module: joinPath(sc.module, name)})
		}
	}
}

func (lw *lowerer) enum(node sitter.Node, sc scope) {
	decl := &EnumDecl{
		file:   lw.file,
		Module: sc.module,
		Block:  sc.block,
		Range:  lw.rangeOf(node),
	}

	for _, child := range namedChildren(node) {
		switch child.Type() {
		case kindTypeIdentifier:
			if decl.Name == "" {
				decl.Name = lw.text(child)
				decl.NameRange = lw.rangeOf(child)
			}
		case kindTypeParameters:
			decl.Generics = lw.genericParams(child)
		case kindEnumVariantList:
			for _, item := range namedChildren(child) {
				if item.Type() == kindEnumVariant {
					decl.Variants = append(decl.Variants, lw.variant(item, decl))
				}
			}
		}
	}

	lw.file.Enums = append(lw.file.Enums, decl)
}

func (lw *lowerer) variant(node sitter.Node, enum *EnumDecl) *Variant {
	variant := &Variant{
		enum:  enum,
		Shape: UnitShape{},
		Range: lw.rangeOf(node),
	}

	for _, child := range namedChildren(node) {
		switch child.Type() {
		case kindIdentifier:
			// A later identifier is a discriminant expression (`A = B`).
			if variant.Name == "" {
				variant.Name = lw.text(child)
			}
		case kindTupleFields:
			variant.Shape = lw.tupleShape(child)
		case kindRecordFields:
			variant.Shape = lw.recordShape(child)
		}
	}

	return variant
}

func (lw *lowerer) tupleShape(node sitter.Node) TupleShape {
	var shape TupleShape

	for _, child := range namedChildren(node) {
		kind := child.Type()

		switch {
		case trivia(kind):
			continue
		case kind == kindError:
			shape.Fields = append(shape.Fields, TupleField{})
		default:
			shape.Fields = append(shape.Fields, TupleField{Type: lw.typeRef(child)})
		}
	}

	return shape
}

func (lw *lowerer) recordShape(node sitter.Node) RecordShape {
	var shape RecordShape

	for _, child := range namedChildren(node) {
		switch child.Type() {
		case kindFieldDeclaration:
			shape.Fields = append(shape.Fields, lw.recordField(child))
		case kindError:
			shape.Fields = append(shape.Fields, RecordField{})
		}
	}

	return shape
}

func (lw *lowerer) recordField(node sitter.Node) RecordField {
	var field RecordField

	for _, child := range namedChildren(node) {
		kind := child.Type()

		switch {
		case trivia(kind), kind == kindError:
			continue
		case kind == kindFieldIdentifier && field.Name == "":
			field.Name = lw.text(child)
		case field.Name != "" && field.Type == nil:
			field.Type = lw.typeRef(child)
		}
	}

	return field
}

func (lw *lowerer) genericParams(node sitter.Node) *GenericParamList {
	list := &GenericParamList{
		Text:  lw.text(node),
		Range: lw.rangeOf(node),
	}

	for _, child := range namedChildren(node) {
		param, ok := lw.genericParam(child)
		if ok {
			list.Params = append(list.Params, param)
		}
	}

	return list
}

// genericParam accepts both the older grammar shape (bare `lifetime`,
// `type_identifier`, `constrained_type_parameter`) and the newer one
// (`lifetime_parameter`, `type_parameter`).
func (lw *lowerer) genericParam(node sitter.Node) (GenericParam, bool) {
	switch node.Type() {
	case kindLifetime:
		return GenericParam{Kind: LifetimeParam, Name: lw.text(node)}, true
	case kindTypeIdentifier:
		return GenericParam{Kind: TypeParam, Name: lw.text(node)}, true
	case kindLifetimeParameter, kindTypeParameter, kindConstrainedTypeParm:
		return lw.boundedParam(node), true
	case kindOptionalTypeParm:
		for _, child := range namedChildren(node) {
			param, ok := lw.genericParam(child)
			if ok {
				return param, true
			}
		}
	case kindConstParameter:
		for _, child := range namedChildren(node) {
			if child.Type() == kindIdentifier {
				return GenericParam{Kind: ConstParam, Name: lw.text(child)}, true
			}
		}
	}

	return GenericParam{}, false
}

func (lw *lowerer) boundedParam(node sitter.Node) GenericParam {
	var param GenericParam

	for _, child := range namedChildren(node) {
		switch child.Type() {
		case kindLifetime:
			if param.Name == "" {
				param = GenericParam{Kind: LifetimeParam, Name: lw.text(child)}
			}
		case kindTypeIdentifier:
			if param.Name == "" {
				param = GenericParam{Kind: TypeParam, Name: lw.text(child)}
			}
		case kindTraitBounds:
			param.Bounds = strings.TrimSpace(strings.TrimPrefix(lw.text(child), ":"))
		}
	}

	return param
}

func (lw *lowerer) impl(node sitter.Node, sc scope) {
	decl := &ImplDecl{
		Module: sc.module,
		Block:  sc.block,
		Range:  lw.rangeOf(node),
	}

	var types []*TypeRef

	for _, child := range namedChildren(node) {
		kind := child.Type()

		switch {
		case kind == kindTypeParameters:
			decl.Generics = lw.genericParams(child)
		case kind == kindDeclarationList:
			lw.blocks(child, sc)
		case kind == kindWhereClause, kind == kindError, trivia(kind):
			continue
		default:
			types = append(types, lw.typeRef(child))
		}
	}

	switch len(types) {
	case 1:
		decl.SelfType = types[0]
	case 2:
		decl.Trait = types[0]
		decl.SelfType = types[1]
	default:
		return
	}

	lw.file.Impls = append(lw.file.Impls, decl)
}

func (lw *lowerer) trait(node sitter.Node, sc scope) {
	decl := &TraitDecl{
		Module: sc.module,
		Block:  sc.block,
		Range:  lw.rangeOf(node),
	}

	for _, child := range namedChildren(node) {
		switch child.Type() {
		case kindTypeIdentifier:
			if decl.Name == "" {
				decl.Name = lw.text(child)
			}
		case kindTypeParameters:
			decl.Generics = lw.genericParams(child)
		case kindDeclarationList:
			lw.blocks(child, sc)
		}
	}

	lw.file.Traits = append(lw.file.Traits, decl)
}
