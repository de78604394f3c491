package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const fileScheme = "file"

// OffsetAt converts an LSP position (0-based line, UTF-16 code units) into
// a byte offset. Positions past the end of a line clamp to the line end.
func OffsetAt(text string, pos protocol.Position) int {
	start := 0

	for line := protocol.UInteger(0); line < pos.Line; line++ {
		idx := strings.IndexByte(text[start:], '\n')
		if idx < 0 {
			return len(text)
		}

		start += idx + 1
	}

	units := int(pos.Character)
	offset := start

	for offset < len(text) && units > 0 {
		r, size := utf8.DecodeRuneInString(text[offset:])
		if r == '\n' {
			break
		}

		units -= utf16.RuneLen(r)
		offset += size
	}

	return offset
}

// PositionAt converts a byte offset into an LSP position.
func PositionAt(text string, offset int) protocol.Position {
	offset = max(0, min(offset, len(text)))
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	line := strings.Count(text[:offset], "\n")

	units := 0
	for _, r := range text[lineStart:offset] {
		units += utf16.RuneLen(r)
	}

	return protocol.Position{Line: toUInteger(line), Character: toUInteger(units)}
}

func toUInteger(value int) protocol.UInteger {
	converted, err := safecast.Conv[protocol.UInteger](value)
	if err != nil {
		return 0
	}

	return converted
}

// URIToPath converts a file:// URI into a local path. Other URIs are
// returned unchanged so they still key overlays uniquely.
func URIToPath(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != fileScheme {
		return uri
	}

	return filepath.FromSlash(parsed.Path)
}
