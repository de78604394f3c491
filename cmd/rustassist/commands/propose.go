package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rustassist/pkg/assist"
	"github.com/Sumatoshi-tech/rustassist/pkg/fixture"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/textedit"
	"github.com/Sumatoshi-tech/rustassist/pkg/workspace"
)

const noOffset = -1

// Sentinel errors for the propose command.
var (
	ErrNotApplicable   = errors.New("no applicable assist")
	ErrCursorConflict  = errors.New("--offset and --at are mutually exclusive")
	ErrNoCursor        = errors.New("no cursor: pass --offset, --at or put " + fixture.Marker + " in the file")
	ErrBadCursorFormat = errors.New("--at must be LINE:COL")
	ErrOffsetRange     = errors.New("offset out of range")
)

type proposeOptions struct {
	offset int
	at     string
	format string
	diff   bool
	write  bool
}

type proposeReport struct {
	File     string            `json:"file"               yaml:"file"`
	Offset   int               `json:"offset"             yaml:"offset"`
	Position textedit.Position `json:"position"           yaml:"position"`
	Reason   assist.Reason     `json:"reason"             yaml:"reason"`
	Proposal *assist.Proposal  `json:"proposal,omitempty" yaml:"proposal,omitempty"`
}

// NewProposeCommand creates the propose subcommand.
func NewProposeCommand(globals *Globals) *cobra.Command {
	opts := proposeOptions{offset: noOffset}

	cmd := &cobra.Command{
		Use:   "propose <file>",
		Short: "Propose a From impl for the enum variant at a cursor",
		Long: `Evaluate the "generate From impl" assist at a cursor in a Rust file.

The cursor is a byte offset (--offset), a 1-based LINE:COL (--at), or a ` + fixture.Marker + `
marker inside the file. The file is analyzed together with the rest of its
crate, found through the nearest Cargo.toml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, globals, observability.ModeCLI, func(ctx context.Context, e *env) error {
				return runPropose(ctx, e, cmd.OutOrStdout(), args[0], opts)
			})
		},
	}

	cmd.Flags().IntVar(&opts.offset, "offset", noOffset, "cursor byte offset")
	cmd.Flags().StringVar(&opts.at, "at", "", "cursor as 1-based LINE:COL")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: text, json or yaml (default from config)")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print the change as a unified diff")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "apply the change to the file")

	return cmd
}

func runPropose(ctx context.Context, e *env, out io.Writer, path string, opts proposeOptions) error {
	format, err := outputFormat(opts.format, e.cfg)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	content, offset, err := resolveCursor(string(raw), opts)
	if err != nil {
		return err
	}

	svc := e.service()

	wsOpts, err := e.workspaceOptions(svc)
	if err != nil {
		return err
	}

	root, err := crateRoot(abs)
	if err != nil {
		return err
	}

	ws, err := workspace.Load(ctx, wsOpts, root)
	if err != nil {
		return err
	}

	file, err := ws.Overlay(ctx, abs, content)
	if err != nil {
		return err
	}

	proposal, reason := svc.Propose(ctx, ws.Database(), file, offset)

	report := proposeReport{
		File:     path,
		Offset:   offset,
		Position: textedit.PositionOf(content, offset),
		Reason:   reason,
		Proposal: proposal,
	}

	structured, err := writeStructured(out, format, report)
	if err != nil {
		return err
	}

	if proposal == nil {
		return fmt.Errorf("%w: %s", ErrNotApplicable, reason)
	}

	patched, err := textedit.Apply(content, proposal.Edit())
	if err != nil {
		return fmt.Errorf("apply proposal: %w", err)
	}

	if !structured {
		writeProposalText(out, newPalette(e.cfg.Output.Color), report, content, patched, opts.diff)
	}

	if opts.write {
		return writeInPlace(abs, patched)
	}

	return nil
}

func writeProposalText(out io.Writer, pal palette, report proposeReport, before, after string, diff bool) {
	pal.header.Fprintf(out, "%s (%s:%d:%d)\n",
		report.Proposal.Label, report.File, report.Position.Line, report.Position.Column)

	if diff {
		pal.writeDiff(out, textedit.UnifiedDiff(filepath.ToSlash(report.File), before, after))

		return
	}

	fmt.Fprintln(out, strings.TrimLeft(report.Proposal.InsertedText, "\n"))
}

func writeInPlace(path, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	err = os.WriteFile(path, []byte(content), info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// resolveCursor returns the text to analyze and the cursor offset in it.
// A marker in the file is removed from the returned text.
func resolveCursor(content string, opts proposeOptions) (string, int, error) {
	switch {
	case opts.offset != noOffset && opts.at != "":
		return "", 0, ErrCursorConflict
	case opts.offset != noOffset:
		if opts.offset < 0 || opts.offset > len(content) {
			return "", 0, fmt.Errorf("%w: %d not in [0, %d]", ErrOffsetRange, opts.offset, len(content))
		}

		return content, opts.offset, nil
	case opts.at != "":
		pos, err := parsePosition(opts.at)
		if err != nil {
			return "", 0, err
		}

		offset, err := textedit.OffsetOf(content, pos)
		if err != nil {
			return "", 0, fmt.Errorf("--at %s: %w", opts.at, err)
		}

		return content, offset, nil
	}

	switch strings.Count(content, fixture.Marker) {
	case 0:
		return "", 0, ErrNoCursor
	case 1:
		offset := strings.Index(content, fixture.Marker)

		return content[:offset] + content[offset+len(fixture.Marker):], offset, nil
	default:
		return "", 0, fixture.ErrMultipleCursors
	}
}

func parsePosition(value string) (textedit.Position, error) {
	lineText, colText, ok := strings.Cut(value, ":")
	if !ok {
		return textedit.Position{}, fmt.Errorf("%w: %q", ErrBadCursorFormat, value)
	}

	line, lineErr := strconv.Atoi(strings.TrimSpace(lineText))
	col, colErr := strconv.Atoi(strings.TrimSpace(colText))

	if lineErr != nil || colErr != nil {
		return textedit.Position{}, fmt.Errorf("%w: %q", ErrBadCursorFormat, value)
	}

	return textedit.Position{Line: line, Column: col}, nil
}

// crateRoot is the directory of the nearest Cargo.toml above path, or path
// itself when the file belongs to no crate.
func crateRoot(path string) (string, error) {
	manifest, err := workspace.FindManifest(filepath.Dir(path))
	if err != nil {
		return "", err
	}

	if manifest == nil {
		return path, nil
	}

	return manifest.Root, nil
}
