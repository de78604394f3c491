package semantic

import (
	"strings"

	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
)

// Path qualifiers that are relative to the current crate or module.
const (
	qualifierCrate = "crate"
	qualifierSelf  = "self"
	qualifierSuper = "super"
)

const elidedLifetime = "'_"

// enumParams returns the enum's generic parameter names in instantiation
// order: lifetimes, then types, then consts.
func enumParams(decl *syntax.EnumDecl) []string {
	if decl == nil || decl.Generics == nil {
		return nil
	}

	names := decl.Generics.Names()

	for _, param := range decl.Generics.Params {
		if param.Kind == syntax.ConstParam && param.Name != "" {
			names = append(names, param.Name)
		}
	}

	return names
}

// selfParams checks the impl's self type arguments against the enum's
// generics and returns, for every enum parameter position, the impl
// parameter bound to it. Elided lifetimes bind nothing.
func selfParams(enum EnumDef, impl *syntax.ImplDecl) ([]string, bool) {
	order := enumParams(enum.decl)
	if len(impl.SelfType.Args) != len(order) {
		return nil, false
	}

	params := make([]string, len(order))
	seen := make(map[string]bool, len(order))

	for idx, arg := range impl.SelfType.Args {
		name := strings.Join(arg.Tokens, "")

		if name == elidedLifetime && strings.HasPrefix(order[idx], "'") {
			continue
		}

		if _, ok := impl.Generics.Lookup(name); !ok || seen[name] {
			return nil, false
		}

		seen[name] = true
		params[idx] = name
	}

	return params, true
}

// selfEnum resolves the enum named by the self type of an impl declared in
// file of unit. A bare name is looked up lexically: enclosing blocks first,
// then the impl's module. Qualified paths resolve relative to the impl's
// module, or to a dependency crate named by their first segment.
func (db *Database) selfEnum(unit UnitID, file *syntax.File, impl *syntax.ImplDecl) *syntax.EnumDecl {
	segments := splitPath(impl.SelfType.Path)
	if len(segments) == 0 {
		return nil
	}

	name := segments[len(segments)-1]
	qualifier := segments[:len(segments)-1]

	if len(qualifier) == 0 {
		return db.lexicalEnum(unit, file, impl, name)
	}

	if module, ok := relativeModule(impl.Module, qualifier); ok {
		if decl := db.moduleEnum(unit, module, name); decl != nil {
			return decl
		}
	}

	dep, ok := db.dependency(unit, qualifier[0])
	if !ok {
		return nil
	}

	return db.moduleEnum(dep, strings.Join(qualifier[1:], syntax.PathSeparator), name)
}

// lexicalEnum finds the enum a bare name refers to at the impl's position:
// the one in the innermost block enclosing the impl, else a module-level one
// in the impl's module, preferring the impl's own file.
func (db *Database) lexicalEnum(unit UnitID, file *syntax.File, impl *syntax.ImplDecl, name string) *syntax.EnumDecl {
	var local, sameFile *syntax.EnumDecl

	for _, enum := range file.Enums {
		if enum.Name != name || enum.Module != impl.Module {
			continue
		}

		switch {
		case enum.Block == nil:
			if sameFile == nil {
				sameFile = enum
			}
		case enum.Block.Contains(impl.Range.Start):
			if local == nil || enum.Block.Len() < local.Block.Len() {
				local = enum
			}
		}
	}

	if local != nil {
		return local
	}

	if sameFile != nil {
		return sameFile
	}

	return db.moduleEnum(unit, impl.Module, name)
}

// moduleEnum finds a module-level enum by module path and name.
func (db *Database) moduleEnum(unit UnitID, module, name string) *syntax.EnumDecl {
	if unit < 0 || int(unit) >= len(db.units) {
		return nil
	}

	for _, file := range db.units[unit].Files {
		for _, enum := range file.Enums {
			if enum.Block == nil && enum.Module == module && enum.Name == name {
				return enum
			}
		}
	}

	return nil
}

// dependency returns the unit a crate name refers to from inside unit.
func (db *Database) dependency(unit UnitID, crate string) (UnitID, bool) {
	if unit < 0 || int(unit) >= len(db.units) {
		return 0, false
	}

	for _, dep := range db.units[unit].Deps {
		if strings.ReplaceAll(dep, "-", "_") != crate {
			continue
		}

		id, ok := db.byName[dep]

		return id, ok
	}

	return 0, false
}

// relativeModule resolves a module qualifier written inside module. It
// fails when `super` climbs above the crate root.
func relativeModule(module string, qualifier []string) (string, bool) {
	switch qualifier[0] {
	case qualifierCrate:
		return strings.Join(qualifier[1:], syntax.PathSeparator), true
	case qualifierSelf:
		qualifier = qualifier[1:]
	case qualifierSuper:
		for len(qualifier) > 0 && qualifier[0] == qualifierSuper {
			if module == "" {
				return "", false
			}

			module = parentModule(module)
			qualifier = qualifier[1:]
		}
	}

	if len(qualifier) == 0 {
		return module, true
	}

	rest := strings.Join(qualifier, syntax.PathSeparator)
	if module == "" {
		return rest, true
	}

	return module + syntax.PathSeparator + rest, true
}

func parentModule(module string) string {
	idx := strings.LastIndex(module, syntax.PathSeparator)
	if idx < 0 {
		return ""
	}

	return module[:idx]
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(strings.TrimSpace(path), syntax.PathSeparator)

	var segments []string

	for _, seg := range strings.Split(path, syntax.PathSeparator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}

	return segments
}

func hasPathSuffix(full, suffix string) bool {
	return full == suffix || strings.HasSuffix(full, syntax.PathSeparator+suffix)
}

func lastSegment(path string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return ""
	}

	return segments[len(segments)-1]
}
