package commands

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/service"
	"github.com/Sumatoshi-tech/rustassist/pkg/workspace"
)

type scanOptions struct {
	format         string
	applicableOnly bool
}

type scanReport struct {
	Files      int           `json:"files"      yaml:"files"`
	Bytes      int64         `json:"bytes"      yaml:"bytes"`
	Skipped    int           `json:"skipped"    yaml:"skipped"`
	Applicable int           `json:"applicable" yaml:"applicable"`
	Variants   []service.Row `json:"variants"   yaml:"variants"`
}

// NewScanCommand creates the scan subcommand.
func NewScanCommand(globals *Globals) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Report where a From impl can be generated",
		Long: `Load the given files and directories as a workspace and evaluate the
"generate From impl" assist on every enum variant.

Directories are walked for Rust sources; crates are formed from Cargo.toml
manifests so impls anywhere in a crate are taken into account.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, globals, observability.ModeCLI, func(ctx context.Context, e *env) error {
				return runScan(ctx, e, cmd.OutOrStdout(), args, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: text, json or yaml (default from config)")
	cmd.Flags().BoolVar(&opts.applicableOnly, "applicable-only", false, "list only variants that can get an impl")

	return cmd
}

func runScan(ctx context.Context, e *env, out io.Writer, roots []string, opts scanOptions) error {
	format, err := outputFormat(opts.format, e.cfg)
	if err != nil {
		return err
	}

	svc := e.service()

	wsOpts, err := e.workspaceOptions(svc)
	if err != nil {
		return err
	}

	ws, err := workspace.Load(ctx, wsOpts, roots...)
	if err != nil {
		return err
	}

	stats := ws.Stats()
	report := scanReport{Files: stats.Files, Bytes: stats.Bytes, Skipped: stats.Skipped, Variants: []service.Row{}}

	for _, path := range ws.Paths() {
		file, ok := ws.File(path)
		if !ok {
			continue
		}

		for _, row := range svc.Scan(ctx, ws.Database(), file) {
			if row.Applicable {
				report.Applicable++
			} else if opts.applicableOnly {
				continue
			}

			row.File = displayPath(path)
			report.Variants = append(report.Variants, row)
		}
	}

	structured, err := writeStructured(out, format, report)
	if err != nil || structured {
		return err
	}

	writeScanTable(out, newPalette(e.cfg.Output.Color), report.Variants, stats)

	return nil
}

// displayPath shortens path relative to the working directory when it lies
// below it.
func displayPath(path string) string {
	wd, err := filepath.Abs(".")
	if err != nil {
		return path
	}

	rel, err := filepath.Rel(wd, path)
	if err != nil || !filepath.IsLocal(rel) {
		return path
	}

	return rel
}
