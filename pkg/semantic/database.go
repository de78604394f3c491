package semantic

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
)

// Sentinel errors for database construction.
var (
	ErrUnknownUnit    = errors.New("unknown compilation unit")
	ErrDuplicateUnit  = errors.New("duplicate compilation unit")
	ErrFileRegistered = errors.New("file already registered")
)

// BuiltinCoreName is the name of the virtual unit added by WithBuiltinCore.
const BuiltinCoreName = "core"

// convertModule is the module whose traits prelude units export as
// well-known `core::convert` items.
const convertModule = "convert"

// preludeTraits maps bare trait names in scope everywhere to their
// well-known paths.
var preludeTraits = map[string]WellKnownPath{
	"From": ConvertFrom,
	"Into": ConvertInto,
}

// Unit is a compilation unit: a crate with its files and dependencies.
type Unit struct {
	ID    UnitID
	Name  string
	Deps  []string
	Files []*syntax.File

	// Builtin is set for the virtual core unit.
	Builtin bool
}

type famousKey struct {
	unit UnitID
	path WellKnownPath
}

// Database is an in-memory semantic model over parsed files. Construction
// (AddUnit, AddFile) must finish before queries start; queries are safe for
// concurrent use.
type Database struct {
	mu sync.RWMutex

	units   []*Unit
	byName  map[string]UnitID
	byFile  map[*syntax.File]UnitID
	famous  map[famousKey]TraitDef
	prelude map[string]bool

	builtinCore bool
	coreID      UnitID
}

// Option configures a Database.
type Option func(*Database)

// WithBuiltinCore adds a virtual `core` unit providing `core::convert::From`
// and `core::convert::Into`, linked as a dependency of every unit. Use it
// when the standard library sources are not part of the loaded workspace.
func WithBuiltinCore() Option {
	return func(db *Database) {
		db.builtinCore = true
	}
}

// WithPreludeUnits overrides the unit names whose `convert` module traits
// are registered as well-known items. The default is core and std.
func WithPreludeUnits(names ...string) Option {
	return func(db *Database) {
		db.prelude = make(map[string]bool, len(names))

		for _, name := range names {
			db.prelude[name] = true
		}
	}
}

// NewDatabase creates an empty Database.
func NewDatabase(opts ...Option) *Database {
	db := &Database{
		byName:  make(map[string]UnitID),
		byFile:  make(map[*syntax.File]UnitID),
		famous:  make(map[famousKey]TraitDef),
		prelude: map[string]bool{"core": true, "std": true},
		coreID:  -1,
	}

	for _, opt := range opts {
		opt(db)
	}

	if db.builtinCore {
		db.addBuiltinCore()
	}

	return db
}

func (db *Database) addBuiltinCore() {
	id := UnitID(len(db.units))
	db.units = append(db.units, &Unit{ID: id, Name: BuiltinCoreName, Builtin: true})
	db.coreID = id

	for name, path := range preludeTraits {
		db.famous[famousKey{unit: id, path: path}] = TraitDef{
			Unit: id,
			Path: convertModule + syntax.PathSeparator + name,
		}
	}
}

// AddUnit registers a compilation unit. Dependencies are referenced by name
// and may be registered later. A real unit named like the builtin core
// replaces it for name lookups.
func (db *Database) AddUnit(name string, deps ...string) (UnitID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if existing, ok := db.byName[name]; ok {
		return existing, fmt.Errorf("%w: %s", ErrDuplicateUnit, name)
	}

	id := UnitID(len(db.units))
	db.units = append(db.units, &Unit{ID: id, Name: name, Deps: slices.Clone(deps)})
	db.byName[name] = id

	return id, nil
}

// AddFile attaches a parsed file to a unit. Prelude units register the
// traits of their `convert` module as well-known items.
func (db *Database) AddFile(unit UnitID, file *syntax.File) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.addFileLocked(unit, file)
}

func (db *Database) addFileLocked(unit UnitID, file *syntax.File) error {
	target, err := db.unitLocked(unit)
	if err != nil {
		return err
	}

	if _, ok := db.byFile[file]; ok {
		return fmt.Errorf("%w: %s", ErrFileRegistered, file.Path)
	}

	target.Files = append(target.Files, file)
	db.byFile[file] = unit

	if db.prelude[target.Name] {
		for _, trait := range file.Traits {
			if trait.Module != convertModule || trait.Block != nil {
				continue
			}

			path := WellKnownPath("core" + syntax.PathSeparator + trait.Path())
			db.famous[famousKey{unit: unit, path: path}] = TraitDef{Unit: unit, Path: trait.Path()}
		}
	}

	return nil
}

// ReplaceFile swaps a registered file for a re-parsed version of it. Traits
// registered as well-known items by the old file stay registered.
func (db *Database) ReplaceFile(old, updated *syntax.File) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	unit, ok := db.byFile[old]
	if !ok {
		return fmt.Errorf("%w: file %s", ErrUnknownUnit, old.Path)
	}

	target := db.units[unit]
	target.Files = slices.DeleteFunc(target.Files, func(f *syntax.File) bool { return f == old })
	delete(db.byFile, old)

	return db.addFileLocked(unit, updated)
}

// Unit returns the unit with the given id.
func (db *Database) Unit(id UnitID) (*Unit, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.unitLocked(id)
}

func (db *Database) unitLocked(id UnitID) (*Unit, error) {
	if id < 0 || int(id) >= len(db.units) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}

	return db.units[id], nil
}

// UnitByName looks up a unit by name.
func (db *Database) UnitByName(name string) (UnitID, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := db.byName[name]

	return id, ok
}

// Units returns all registered units, the builtin core included.
func (db *Database) Units() []*Unit {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return slices.Clone(db.units)
}

// UnitOf returns the unit a file was registered in.
func (db *Database) UnitOf(file *syntax.File) (UnitID, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := db.byFile[file]

	return id, ok
}

// visible returns the unit and its transitive dependencies in breadth-first
// order. The builtin core, when enabled, is visible from every unit.
func (db *Database) visible(start UnitID) []UnitID {
	seen := map[UnitID]bool{start: true}
	queue := []UnitID{start}

	for idx := 0; idx < len(queue); idx++ {
		unit := db.units[queue[idx]]

		for _, dep := range unit.Deps {
			id, ok := db.byName[dep]
			if !ok || seen[id] {
				continue
			}

			seen[id] = true
			queue = append(queue, id)
		}
	}

	if db.coreID >= 0 && !seen[db.coreID] {
		queue = append(queue, db.coreID)
	}

	return queue
}

// ResolveVariant implements Semantics.
func (db *Database) ResolveVariant(variant *syntax.Variant) (VariantDef, bool) {
	if variant == nil || variant.Name == "" {
		return VariantDef{}, false
	}

	decl := variant.Enum()
	if decl == nil || decl.Name == "" {
		return VariantDef{}, false
	}

	idx := variant.Index()
	if idx < 0 {
		return VariantDef{}, false
	}

	unit, ok := db.UnitOf(decl.File())
	if !ok {
		return VariantDef{}, false
	}

	return VariantDef{
		Enum:  EnumDef{Unit: unit, Path: decl.Path(), decl: decl},
		Index: idx,
		Name:  variant.Name,
	}, true
}

// ParentEnum implements Semantics.
func (db *Database) ParentEnum(variant VariantDef) EnumDef {
	return variant.Enum
}

// OwningUnit implements Semantics.
func (db *Database) OwningUnit(enum EnumDef) UnitID {
	return enum.Unit
}

// EnumType implements Semantics.
func (db *Database) EnumType(enum EnumDef) Type {
	params := enumParams(enum.decl)

	repr := lastSegment(enum.Path)
	if len(params) > 0 {
		placeholders := make([]string, len(params))
		for idx := range params {
			placeholders[idx] = placeholder(idx)
		}

		repr += "<" + strings.Join(placeholders, ",") + ">"
	}

	def := enum

	return Type{Repr: repr, Enum: &def}
}

// FamousTrait implements Semantics.
func (db *Database) FamousTrait(unit UnitID, path WellKnownPath) (TraitDef, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if unit < 0 || int(unit) >= len(db.units) {
		return TraitDef{}, false
	}

	return db.famousLocked(unit, path)
}

// FieldType implements Semantics.
func (db *Database) FieldType(variant VariantDef, index int) (Type, bool) {
	decl := variant.Enum.decl
	if decl == nil || variant.Index < 0 || variant.Index >= len(decl.Variants) {
		return Type{}, false
	}

	var ref *syntax.TypeRef

	switch shape := decl.Variants[variant.Index].Shape.(type) {
	case syntax.TupleShape:
		if index < 0 || index >= len(shape.Fields) {
			return Type{}, false
		}

		ref = shape.Fields[index].Type
	case syntax.RecordShape:
		if index < 0 || index >= len(shape.Fields) {
			return Type{}, false
		}

		ref = shape.Fields[index].Type
	case syntax.UnitShape:
		return Type{}, false
	}

	if ref == nil {
		return Type{}, false
	}

	return Type{Repr: CanonicalType(ref, enumParams(decl))}, true
}

// Implements implements Semantics. Only enum self types are indexed. Impls
// are searched in the enum's unit and in the trait's unit, the two places
// coherence allows them.
func (db *Database) Implements(ty Type, trait TraitDef, args []Type) bool {
	if ty.Enum == nil || ty.Enum.decl == nil {
		return false
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	units := []UnitID{ty.Enum.Unit}
	if trait.Unit != ty.Enum.Unit {
		units = append(units, trait.Unit)
	}

	for _, unit := range units {
		if unit < 0 || int(unit) >= len(db.units) {
			continue
		}

		for _, file := range db.units[unit].Files {
			for _, impl := range file.Impls {
				if db.implMatches(unit, file, impl, *ty.Enum, trait, args) {
					return true
				}
			}
		}
	}

	return false
}

func (db *Database) implMatches(
	unit UnitID, file *syntax.File, impl *syntax.ImplDecl, enum EnumDef, trait TraitDef, args []Type,
) bool {
	if impl.Trait == nil || impl.SelfType == nil || len(impl.Trait.Args) != len(args) {
		return false
	}

	resolved, ok := db.resolveTrait(unit, file, impl, impl.Trait.Path)
	if !ok || resolved != trait {
		return false
	}

	if db.selfEnum(unit, file, impl) != enum.decl {
		return false
	}

	params, ok := selfParams(enum, impl)
	if !ok {
		return false
	}

	for idx, arg := range impl.Trait.Args {
		if !(Type{Repr: CanonicalType(arg, params)}).Equal(args[idx]) {
			return false
		}
	}

	return true
}

// resolveTrait resolves a trait path written in an impl of unit.
func (db *Database) resolveTrait(unit UnitID, file *syntax.File, impl *syntax.ImplDecl, path string) (TraitDef, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return TraitDef{}, false
	}

	if len(segments) == 1 {
		if trait, ok := db.localTrait(unit, file, impl, segments[0]); ok {
			return trait, true
		}

		if famous, ok := preludeTraits[segments[0]]; ok {
			return db.famousLocked(unit, famous)
		}

		return TraitDef{}, false
	}

	switch segments[0] {
	case "core", "std":
		return db.famousLocked(unit, WellKnownPath("core"+syntax.PathSeparator+strings.Join(segments[1:], syntax.PathSeparator)))
	case qualifierCrate, qualifierSelf, qualifierSuper:
		segments = segments[1:]
	}

	want := strings.Join(segments, syntax.PathSeparator)

	for _, other := range db.units[unit].Files {
		for _, trait := range other.Traits {
			if trait.Block == nil && hasPathSuffix(trait.Path(), want) {
				return TraitDef{Unit: unit, Path: trait.Path()}, true
			}
		}
	}

	return TraitDef{}, false
}

// localTrait finds a trait named name visible from the impl: one declared
// in a block enclosing it, then one in its module, then one at the crate
// root.
func (db *Database) localTrait(unit UnitID, file *syntax.File, impl *syntax.ImplDecl, name string) (TraitDef, bool) {
	var local, moduleMatch, rootMatch *syntax.TraitDecl

	for _, trait := range file.Traits {
		if trait.Name != name || trait.Module != impl.Module || trait.Block == nil {
			continue
		}

		if trait.Block.Contains(impl.Range.Start) && (local == nil || trait.Block.Len() < local.Block.Len()) {
			local = trait
		}
	}

	for _, other := range db.units[unit].Files {
		for _, trait := range other.Traits {
			if trait.Name != name || trait.Block != nil {
				continue
			}

			if trait.Module == impl.Module && moduleMatch == nil {
				moduleMatch = trait
			}

			if trait.Module == "" && rootMatch == nil {
				rootMatch = trait
			}
		}
	}

	for _, match := range []*syntax.TraitDecl{local, moduleMatch, rootMatch} {
		if match != nil {
			return TraitDef{Unit: unit, Path: match.Path()}, true
		}
	}

	return TraitDef{}, false
}

func (db *Database) famousLocked(unit UnitID, path WellKnownPath) (TraitDef, bool) {
	for _, id := range db.visible(unit) {
		if trait, ok := db.famous[famousKey{unit: id, path: path}]; ok {
			return trait, true
		}
	}

	return TraitDef{}, false
}
