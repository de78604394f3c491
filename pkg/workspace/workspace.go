// Package workspace loads Rust source trees from disk into a semantic
// database, one compilation unit per Cargo package.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
)

const (
	tracerName = "rustassist/workspace"

	defaultMaxFileSize = 1 << 20
	defaultUnitName    = "main"
)

// ErrNoRoots indicates Load was called without any path.
var ErrNoRoots = errors.New("no workspace roots given")

// Options configures workspace loading.
type Options struct {
	// MaxFileSize skips larger files during the walk. Zero means 1MiB.
	MaxFileSize int64

	// Workers bounds concurrent parsing. Zero means GOMAXPROCS.
	Workers int

	// ExcludeDirs are directory names never descended into. Nil means
	// target and .git.
	ExcludeDirs []string

	// Semantic options for the database, e.g. semantic.WithBuiltinCore.
	Semantic []semantic.Option

	Parser  *syntax.Parser
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.AssistMetrics
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = defaultMaxFileSize
	}

	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}

	if o.ExcludeDirs == nil {
		o.ExcludeDirs = []string{"target", ".git"}
	}

	if o.Parser == nil {
		o.Parser = syntax.NewParser()
	}

	o.Logger = observability.Component(o.Logger, "workspace")

	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}

	return o
}

// Stats summarizes a load.
type Stats struct {
	Files   int
	Bytes   int64
	Skipped int
	Units   int
}

// Workspace is a loaded set of Rust files and the database built over them.
type Workspace struct {
	mu        sync.RWMutex
	opts      Options
	db        *semantic.Database
	files     map[string]*syntax.File
	manifests *manifestCache
	fallback  string
	stats     Stats
}

type loader struct {
	opts    Options
	logger  *slog.Logger
	skipped int
}

// Load walks roots (directories or .rs files), parses every Rust file and
// builds the database.
func Load(ctx context.Context, opts Options, roots ...string) (*Workspace, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	opts = opts.withDefaults()
	start := time.Now()

	ctx, span := opts.Tracer.Start(ctx, "rustassist.workspace.load")
	defer span.End()

	l := &loader{opts: opts, logger: opts.Logger}

	var candidates []candidate

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}

		found, err := l.collect(abs)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, found...)
	}

	candidates = dedupe(candidates)

	parsed, err := parseAll(ctx, opts, candidates)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		opts:      opts,
		db:        semantic.NewDatabase(opts.Semantic...),
		files:     make(map[string]*syntax.File, len(parsed)),
		manifests: newManifestCache(),
		fallback:  fallbackUnitName(roots[0]),
	}

	var bytes int64

	for i, file := range parsed {
		addErr := ws.register(file)
		if addErr != nil {
			return nil, addErr
		}

		bytes += candidates[i].size
	}

	ws.stats = Stats{
		Files:   len(parsed),
		Bytes:   bytes,
		Skipped: l.skipped,
		Units:   countUnits(ws.db),
	}

	duration := time.Since(start)
	opts.Metrics.RecordLoad(ctx, len(parsed), bytes, duration)

	span.SetAttributes(
		attribute.Int("workspace.files", len(parsed)),
		attribute.Int64("workspace.bytes", bytes),
	)

	opts.Logger.InfoContext(ctx, "workspace loaded",
		"workspace.files", len(parsed),
		"workspace.units", ws.stats.Units,
		"workspace.skipped", l.skipped,
		"duration", duration,
	)

	return ws, nil
}

func countUnits(db *semantic.Database) int {
	count := 0

	for _, unit := range db.Units() {
		if !unit.Builtin {
			count++
		}
	}

	return count
}

func dedupe(candidates []candidate) []candidate {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].path < candidates[j].path })

	out := candidates[:0]

	for i, c := range candidates {
		if i > 0 && c.path == candidates[i-1].path {
			continue
		}

		out = append(out, c)
	}

	return out
}

func parseAll(ctx context.Context, opts Options, candidates []candidate) ([]*syntax.File, error) {
	results := make([]*syntax.File, len(candidates))

	if len(candidates) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(opts.Workers, len(candidates)))

	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			file, err := parseFile(gctx, opts, c.path)
			if err != nil {
				return err
			}

			results[i] = file

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, fmt.Errorf("parse workspace: %w", err)
	}

	return results, nil
}

func parseFile(ctx context.Context, opts Options, path string) (*syntax.File, error) {
	ctx, span := opts.Tracer.Start(ctx, observability.SpanParseFile,
		trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	file, err := opts.Parser.Parse(ctx, path, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if file.HasErrors {
		opts.Logger.DebugContext(ctx, "file has syntax errors", "file.path", path)
	}

	return file, nil
}

// register adds file to the unit of its nearest manifest. Callers hold mu
// or own ws exclusively.
func (ws *Workspace) register(file *syntax.File) error {
	manifest, err := ws.manifests.nearest(filepath.Dir(file.Path))
	if err != nil {
		return err
	}

	name, deps := ws.fallback, []string(nil)
	if manifest != nil {
		name, deps = manifest.Name, manifest.Deps
	}

	unit, ok := ws.db.UnitByName(name)
	if !ok {
		unit, err = ws.db.AddUnit(name, deps...)
		if err != nil {
			return fmt.Errorf("unit %s: %w", name, err)
		}
	}

	err = ws.db.AddFile(unit, file)
	if err != nil {
		return fmt.Errorf("add %s: %w", file.Path, err)
	}

	ws.files[file.Path] = file

	return nil
}

func fallbackUnitName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return defaultUnitName
	}

	info, err := os.Stat(abs)
	if err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	name := CrateName(strings.ReplaceAll(filepath.Base(abs), ".", "_"))
	if name == "" || name == string(filepath.Separator) {
		return defaultUnitName
	}

	return name
}

// Database returns the semantic database over every loaded file.
func (ws *Workspace) Database() *semantic.Database {
	return ws.db
}

// Parser returns the parser used for loading and overlays.
func (ws *Workspace) Parser() *syntax.Parser {
	return ws.opts.Parser
}

// File returns the loaded file at path.
func (ws *Workspace) File(path string) (*syntax.File, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	ws.mu.RLock()
	defer ws.mu.RUnlock()

	file, ok := ws.files[abs]

	return file, ok
}

// Paths returns every loaded file path in sorted order.
func (ws *Workspace) Paths() []string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	paths := make([]string, 0, len(ws.files))
	for path := range ws.files {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	return paths
}

// Stats returns the counters of the initial load.
func (ws *Workspace) Stats() Stats {
	return ws.stats
}

// Overlay re-parses path from an in-memory buffer and swaps it into the
// database. Unknown paths are added to the unit of their nearest manifest.
func (ws *Workspace) Overlay(ctx context.Context, path, content string) (*syntax.File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	file, err := ws.opts.Parser.ParseString(ctx, abs, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", abs, err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	old, ok := ws.files[abs]
	if !ok {
		regErr := ws.register(file)
		if regErr != nil {
			return nil, regErr
		}

		return file, nil
	}

	err = ws.db.ReplaceFile(old, file)
	if err != nil {
		return nil, fmt.Errorf("overlay %s: %w", abs, err)
	}

	ws.files[abs] = file

	return file, nil
}
