package textedit

import (
	"errors"
	"strings"
)

// ErrBadPosition indicates a line or column outside the text.
var ErrBadPosition = errors.New("position outside text")

// Position is a 1-based line and byte column.
type Position struct {
	Line   int `json:"line"   yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// PositionOf converts a byte offset into a Position. Offsets past the end
// clamp to the end of src.
func PositionOf(src string, offset int) Position {
	offset = max(0, min(offset, len(src)))
	prefix := src[:offset]
	line := strings.Count(prefix, "\n") + 1
	col := offset - (strings.LastIndexByte(prefix, '\n') + 1) + 1

	return Position{Line: line, Column: col}
}

// OffsetOf converts a Position into a byte offset. The column may point one
// past the last byte of the line.
func OffsetOf(src string, pos Position) (int, error) {
	if pos.Line < 1 || pos.Column < 1 {
		return 0, ErrBadPosition
	}

	start := 0

	for range pos.Line - 1 {
		idx := strings.IndexByte(src[start:], '\n')
		if idx < 0 {
			return 0, ErrBadPosition
		}

		start += idx + 1
	}

	end := len(src)
	if idx := strings.IndexByte(src[start:], '\n'); idx >= 0 {
		end = start + idx
	}

	offset := start + pos.Column - 1
	if offset > end {
		return 0, ErrBadPosition
	}

	return offset, nil
}
