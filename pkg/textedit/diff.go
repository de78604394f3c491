package textedit

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// LineOp classifies a diff line.
type LineOp int

// Line operations.
const (
	LineEqual LineOp = iota
	LineInsert
	LineDelete
)

type diffLine struct {
	op   LineOp
	text string
}

// UnifiedDiff renders the change from before to after as a unified diff with
// DefaultContext lines of context. It returns "" when the texts are equal.
func UnifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}

	lines := lineDiff(before, after)

	var sb strings.Builder

	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)

	for _, h := range hunks(lines, DefaultContext) {
		h.write(&sb, lines)
	}

	return sb.String()
}

// lineDiff computes a line-mode diff.
func lineDiff(before, after string) []diffLine {
	dmp := diffmatchpatch.New()
	src, dst, lineArray := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffMainRunes(src, dst, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []diffLine

	for _, d := range diffs {
		op := LineEqual

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = LineInsert
		case diffmatchpatch.DiffDelete:
			op = LineDelete
		case diffmatchpatch.DiffEqual:
		}

		for _, text := range splitLines(d.Text) {
			out = append(out, diffLine{op: op, text: text})
		}
	}

	return out
}

// splitLines splits text into lines, keeping a final line without newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

type hunk struct {
	start, end int
}

func hunks(lines []diffLine, context int) []hunk {
	var out []hunk

	for idx, line := range lines {
		if line.op == LineEqual {
			continue
		}

		start := max(idx-context, 0)
		end := min(idx+context+1, len(lines))

		if len(out) > 0 && start <= out[len(out)-1].end {
			out[len(out)-1].end = max(out[len(out)-1].end, end)

			continue
		}

		out = append(out, hunk{start: start, end: end})
	}

	return out
}

func (h hunk) write(sb *strings.Builder, lines []diffLine) {
	oldStart, newStart := 1, 1

	for _, line := range lines[:h.start] {
		if line.op != LineInsert {
			oldStart++
		}

		if line.op != LineDelete {
			newStart++
		}
	}

	var oldCount, newCount int

	for _, line := range lines[h.start:h.end] {
		if line.op != LineInsert {
			oldCount++
		}

		if line.op != LineDelete {
			newCount++
		}
	}

	fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)

	for _, line := range lines[h.start:h.end] {
		prefix := " "

		switch line.op {
		case LineInsert:
			prefix = "+"
		case LineDelete:
			prefix = "-"
		case LineEqual:
		}

		sb.WriteString(prefix)
		sb.WriteString(line.text)

		if !strings.HasSuffix(line.text, "\n") {
			sb.WriteString("\n\\ No newline at end of file\n")
		}
	}
}
