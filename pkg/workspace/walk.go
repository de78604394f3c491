package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/src-d/enry/v2"
)

const languageRust = "Rust"

var (
	// ErrNotRust indicates an explicitly named file is not Rust source.
	ErrNotRust = errors.New("not a Rust source file")
	// ErrFileTooLarge indicates an explicitly named file exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds max file size")
)

type candidate struct {
	path string
	root string
	size int64
}

// IsRust reports whether enry classifies name as Rust by its extension.
func IsRust(name string) bool {
	lang, _ := enry.GetLanguageByExtension(name)

	return lang == languageRust
}

// collect lists Rust files under root. An explicit file root must be Rust
// and within the size limit; walked files that fail either test are skipped.
func (l *loader) collect(root string) ([]candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	if !info.IsDir() {
		if !IsRust(root) {
			return nil, fmt.Errorf("%s: %w", root, ErrNotRust)
		}

		if info.Size() > l.opts.MaxFileSize {
			return nil, fmt.Errorf("%s: %w", root, ErrFileTooLarge)
		}

		return []candidate{{path: root, root: filepath.Dir(root), size: info.Size()}}, nil
	}

	var found []candidate

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("relative path %s: %w", path, relErr)
		}

		if entry.IsDir() {
			if path != root && l.skipDir(entry.Name(), rel) {
				return filepath.SkipDir
			}

			return nil
		}

		if !IsRust(path) || enry.IsVendor(filepath.ToSlash(rel)) {
			return nil
		}

		fileInfo, infoErr := entry.Info()
		if infoErr != nil {
			return fmt.Errorf("stat %s: %w", path, infoErr)
		}

		if fileInfo.Size() > l.opts.MaxFileSize {
			l.skipped++
			l.logger.Debug("skipping large file", "file.path", path, "file.size", fileInfo.Size())

			return nil
		}

		found = append(found, candidate{path: path, root: root, size: fileInfo.Size()})

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	return found, nil
}

func (l *loader) skipDir(name, rel string) bool {
	if slices.Contains(l.opts.ExcludeDirs, name) {
		return true
	}

	return enry.IsVendor(filepath.ToSlash(rel) + "/")
}
