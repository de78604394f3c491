// Package fixture parses multi-file Rust snippets with a cursor marker and
// loads them into a semantic database.
//
// A fixture is plain Rust text, optionally split into files by header lines:
//
//	//- /main.rs crate:main deps:core
//	enum A { $0One(u32) }
//	//- /libcore.rs crate:core
//	pub mod convert { pub trait From<T> { fn from(t: T) -> Self; } }
//
// Text without headers is a single file /main.rs in crate main. The `$0`
// marker sets the cursor and is removed from the text.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
)

// Marker is the cursor marker.
const Marker = "$0"

const (
	headerPrefix = "//-"
	defaultPath  = "/main.rs"
	defaultCrate = "main"
	metaCrate    = "crate"
	metaDeps     = "deps"
)

// Sentinel errors for fixture parsing.
var (
	ErrEmpty           = errors.New("empty fixture")
	ErrMultipleCursors = errors.New("more than one cursor marker")
	ErrBadHeader       = errors.New("malformed fixture header")
)

// Core is a minimal core crate providing the conversion traits, for
// fixtures declaring `deps:core`.
const Core = `//- /libcore.rs crate:core
pub mod convert {
    pub trait From<T>: Sized {
        fn from(value: T) -> Self;
    }

    pub trait Into<T>: Sized {
        fn into(self) -> T;
    }
}
`

// File is one file of a fixture.
type File struct {
	Path  string
	Crate string
	Deps  []string
	Text  string
}

// Fixture is a parsed fixture.
type Fixture struct {
	Files []File

	// CursorFile is the index of the file holding the marker, -1 if none.
	CursorFile   int
	CursorOffset int
}

// Parse parses fixture text. Indentation common to all lines is removed
// first, as is a single leading newline.
func Parse(text string) (*Fixture, error) {
	text = trimIndent(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	fx := &Fixture{CursorFile: -1}

	if !strings.HasPrefix(text, headerPrefix) {
		fx.Files = append(fx.Files, File{Path: defaultPath, Crate: defaultCrate, Text: text})
	} else if err := fx.split(text); err != nil {
		return nil, err
	}

	for idx := range fx.Files {
		if err := fx.extractCursor(idx); err != nil {
			return nil, err
		}
	}

	return fx, nil
}

func (fx *Fixture) split(text string) error {
	var (
		current *File
		body    strings.Builder
		crate   = defaultCrate
	)

	flush := func() {
		if current != nil {
			current.Text = body.String()
			fx.Files = append(fx.Files, *current)
		}

		body.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if !strings.HasPrefix(line, headerPrefix) {
			body.WriteString(line)

			continue
		}

		flush()

		file, err := parseHeader(strings.TrimSpace(strings.TrimPrefix(line, headerPrefix)), crate)
		if err != nil {
			return err
		}

		crate = file.Crate
		current = &file
	}

	flush()

	return nil
}

func parseHeader(header, crate string) (File, error) {
	fields := strings.Fields(header)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return File{}, fmt.Errorf("%w: %q", ErrBadHeader, header)
	}

	file := File{Path: fields[0], Crate: crate}

	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			return File{}, fmt.Errorf("%w: %q", ErrBadHeader, field)
		}

		switch key {
		case metaCrate:
			file.Crate = value
		case metaDeps:
			for _, dep := range strings.Split(value, ",") {
				if dep != "" {
					file.Deps = append(file.Deps, dep)
				}
			}
		default:
			return File{}, fmt.Errorf("%w: unknown key %q", ErrBadHeader, key)
		}
	}

	return file, nil
}

func (fx *Fixture) extractCursor(idx int) error {
	text := fx.Files[idx].Text

	pos := strings.Index(text, Marker)
	if pos < 0 {
		return nil
	}

	if fx.CursorFile >= 0 || strings.Contains(text[pos+len(Marker):], Marker) {
		return ErrMultipleCursors
	}

	fx.Files[idx].Text = text[:pos] + text[pos+len(Marker):]
	fx.CursorFile = idx
	fx.CursorOffset = pos

	return nil
}

// HasCursor reports whether the fixture contains a cursor marker.
func (fx *Fixture) HasCursor() bool {
	return fx.CursorFile >= 0
}

// Load parses every file and registers it in a new database, one unit per
// crate. It returns the file holding the cursor (the first file when there
// is none) and the cursor offset (-1 when there is none).
func (fx *Fixture) Load(
	ctx context.Context, parser *syntax.Parser, opts ...semantic.Option,
) (*semantic.Database, *syntax.File, int, error) {
	db := semantic.NewDatabase(opts...)

	units := make(map[string]semantic.UnitID)

	var target *syntax.File

	for idx, file := range fx.Files {
		unit, ok := units[file.Crate]
		if !ok {
			id, err := db.AddUnit(file.Crate, crateDeps(fx.Files, file.Crate)...)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("fixture unit %s: %w", file.Crate, err)
			}

			unit = id
			units[file.Crate] = id
		}

		parsed, err := parser.ParseString(ctx, file.Path, file.Text)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("fixture file %s: %w", file.Path, err)
		}

		if err := db.AddFile(unit, parsed); err != nil {
			return nil, nil, 0, fmt.Errorf("fixture file %s: %w", file.Path, err)
		}

		if idx == 0 || idx == fx.CursorFile {
			target = parsed
		}
	}

	offset := -1
	if fx.HasCursor() {
		offset = fx.CursorOffset
	}

	return db, target, offset, nil
}

func crateDeps(files []File, crate string) []string {
	var deps []string

	for _, file := range files {
		if file.Crate == crate {
			deps = append(deps, file.Deps...)
		}
	}

	return deps
}

// trimIndent drops one leading newline and the indentation shared by all
// non-blank lines.
func trimIndent(text string) string {
	text = strings.TrimPrefix(text, "\n")

	lines := strings.Split(text, "\n")
	indent := -1

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		width := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || width < indent {
			indent = width
		}
	}

	if indent <= 0 {
		return text
	}

	for idx, line := range lines {
		if len(line) >= indent {
			lines[idx] = line[indent:]
		} else {
			lines[idx] = strings.TrimLeft(line, " \t")
		}
	}

	return strings.Join(lines, "\n")
}
