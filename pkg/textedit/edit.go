// Package textedit models byte-offset text edits and renders their effect as
// a unified diff.
package textedit

import (
	"errors"
	"fmt"
	"slices"
)

// Sentinel errors for edit application.
var (
	ErrOutOfBounds = errors.New("edit out of bounds")
	ErrOverlap     = errors.New("overlapping edits")
)

// Edit replaces the bytes [Offset, End) with Text. An insert has
// Offset == End.
type Edit struct {
	Offset int    `json:"offset" yaml:"offset"`
	End    int    `json:"end"    yaml:"end"`
	Text   string `json:"text"   yaml:"text"`
}

// Insert creates an edit inserting text at offset.
func Insert(offset int, text string) Edit {
	return Edit{Offset: offset, End: offset, Text: text}
}

// Replace creates an edit replacing [start, end) with text.
func Replace(start, end int, text string) Edit {
	return Edit{Offset: start, End: end, Text: text}
}

// IsInsert reports whether the edit removes nothing.
func (e Edit) IsInsert() bool {
	return e.Offset == e.End
}

// Apply returns src with all edits applied. Offsets refer to the original
// src. Edits must not overlap; inserts at the same offset are applied in
// the given order.
func Apply(src string, edits ...Edit) (string, error) {
	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int {
		return a.Offset - b.Offset
	})

	prevEnd := 0

	for _, edit := range sorted {
		if edit.Offset < 0 || edit.End < edit.Offset || edit.End > len(src) {
			return "", fmt.Errorf("%w: [%d, %d) in %d bytes", ErrOutOfBounds, edit.Offset, edit.End, len(src))
		}

		if edit.Offset < prevEnd {
			return "", fmt.Errorf("%w: at %d", ErrOverlap, edit.Offset)
		}

		prevEnd = edit.End
	}

	out := make([]byte, 0, len(src)+totalInserted(sorted))
	cursor := 0

	for _, edit := range sorted {
		out = append(out, src[cursor:edit.Offset]...)
		out = append(out, edit.Text...)
		cursor = edit.End
	}

	out = append(out, src[cursor:]...)

	return string(out), nil
}

func totalInserted(edits []Edit) int {
	total := 0

	for _, edit := range edits {
		total += len(edit.Text)
	}

	return total
}
