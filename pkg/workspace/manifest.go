package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file that defines a crate.
const ManifestName = "Cargo.toml"

// Manifest is the subset of a Cargo manifest that shapes the unit graph.
type Manifest struct {
	Path string
	Root string
	Name string
	Deps []string
}

type cargoManifest struct {
	Package      cargoPackage   `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
}

type cargoPackage struct {
	Name string `toml:"name"`
}

// LoadManifest decodes the manifest at path. A manifest without
// [package].name, such as a virtual workspace root, yields ok=false.
func LoadManifest(path string) (*Manifest, bool, error) {
	var raw cargoManifest

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, false, fmt.Errorf("%s: parse TOML: %w", path, err)
	}

	if !meta.IsDefined("package", "name") || strings.TrimSpace(raw.Package.Name) == "" {
		return nil, false, nil
	}

	deps := make([]string, 0, len(raw.Dependencies))

	for key, spec := range raw.Dependencies {
		name := key

		if table, isTable := spec.(map[string]any); isTable {
			if pkg, hasPkg := table["package"].(string); hasPkg && pkg != "" {
				name = pkg
			}
		}

		deps = append(deps, CrateName(name))
	}

	sort.Strings(deps)

	return &Manifest{
		Path: path,
		Root: filepath.Dir(path),
		Name: CrateName(raw.Package.Name),
		Deps: deps,
	}, true, nil
}

// CrateName normalizes a package name the way rustc names the crate.
func CrateName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}

// FindManifest returns the closest manifest declaring a package at or
// above dir, or nil when there is none.
func FindManifest(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	return newManifestCache().nearest(abs)
}

// manifestCache memoizes the nearest manifest per directory.
type manifestCache struct {
	byDir map[string]*Manifest
}

func newManifestCache() *manifestCache {
	return &manifestCache{byDir: make(map[string]*Manifest)}
}

// nearest returns the closest manifest with a package at or above dir, or
// nil when there is none.
func (c *manifestCache) nearest(dir string) (*Manifest, error) {
	var visited []string

	var found *Manifest

	for {
		if cached, ok := c.byDir[dir]; ok {
			found = cached

			break
		}

		visited = append(visited, dir)

		candidate := filepath.Join(dir, ManifestName)

		_, statErr := os.Stat(candidate)
		if statErr == nil {
			manifest, ok, err := LoadManifest(candidate)
			if err != nil {
				return nil, err
			}

			if ok {
				found = manifest

				break
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", candidate, statErr)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	for _, d := range visited {
		c.byDir[d] = found
	}

	return found, nil
}
