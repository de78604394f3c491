package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"fortio.org/safecast"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/rustassist/internal/config"
	"github.com/Sumatoshi-tech/rustassist/pkg/service"
	"github.com/Sumatoshi-tech/rustassist/pkg/workspace"
)

const (
	jsonIndent  = "  "
	yamlIndent  = 2
	statusOK    = "applicable"
	diffAdded   = "+"
	diffRemoved = "-"
	diffHunk    = "@@"
	diffHeader  = "+++"
	diffOldHead = "---"
)

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", jsonIndent)

	err := enc.Encode(value)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func writeYAML(out io.Writer, value any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(value)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return nil
}

// outputFormat picks the flag value over the configured format.
func outputFormat(flag string, cfg *config.Config) (string, error) {
	switch flag {
	case "":
		return cfg.Output.Format, nil
	case config.FormatText, config.FormatJSON, config.FormatYAML:
		return flag, nil
	default:
		return "", fmt.Errorf("%w: got %q", config.ErrInvalidFormat, flag)
	}
}

// writeStructured renders value as JSON or YAML. It reports false for the
// text format, which every command renders its own way.
func writeStructured(out io.Writer, format string, value any) (bool, error) {
	switch format {
	case config.FormatJSON:
		return true, writeJSON(out, value)
	case config.FormatYAML:
		return true, writeYAML(out, value)
	default:
		return false, nil
	}
}

// palette colors diff and status output.
type palette struct {
	added   *color.Color
	removed *color.Color
	hunk    *color.Color
	header  *color.Color
	good    *color.Color
	muted   *color.Color
}

func newPalette(mode string) palette {
	enabled := mode == config.ColorAlways || (mode != config.ColorNever && !color.NoColor)

	pal := palette{
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		hunk:    color.New(color.FgCyan),
		header:  color.New(color.Bold),
		good:    color.New(color.FgGreen),
		muted:   color.New(color.FgYellow),
	}

	for _, c := range []*color.Color{pal.added, pal.removed, pal.hunk, pal.header, pal.good, pal.muted} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return pal
}

func (p palette) writeDiff(out io.Writer, diff string) {
	for line := range strings.SplitAfterSeq(diff, "\n") {
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, diffHeader), strings.HasPrefix(line, diffOldHead):
			p.header.Fprint(out, line)
		case strings.HasPrefix(line, diffHunk):
			p.hunk.Fprint(out, line)
		case strings.HasPrefix(line, diffAdded):
			p.added.Fprint(out, line)
		case strings.HasPrefix(line, diffRemoved):
			p.removed.Fprint(out, line)
		default:
			fmt.Fprint(out, line)
		}
	}
}

// writeScanTable renders scan rows as a table followed by a summary line.
func writeScanTable(out io.Writer, pal palette, rows []service.Row, stats workspace.Stats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateHeader = false

	tw.AppendHeader(table.Row{"Location", "Enum", "Variant", "Status"})

	applicable := 0

	for _, row := range rows {
		status := pal.muted.Sprint(string(row.Reason))
		if row.Applicable {
			applicable++
			status = pal.good.Sprint(statusOK)
		}

		location := fmt.Sprintf("%s:%d:%d", row.File, row.Position.Line, row.Position.Column)
		tw.AppendRow(table.Row{location, row.Enum, row.Variant, status})
	}

	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d variants", len(rows)), fmt.Sprintf("%d applicable", applicable)})
	tw.Render()

	fmt.Fprintf(out, "\nScanned %d files (%s), %d skipped\n", stats.Files, humanBytes(stats.Bytes), stats.Skipped)
}

func humanBytes(n int64) string {
	size, err := safecast.Conv[uint64](n)
	if err != nil {
		return humanize.IBytes(0)
	}

	return humanize.IBytes(size)
}
