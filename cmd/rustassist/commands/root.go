// Package commands implements the rustassist CLI subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the rustassist root command with every
// subcommand attached.
func NewRootCommand() *cobra.Command {
	globals := &Globals{}

	rootCmd := &cobra.Command{
		Use:   "rustassist",
		Short: "Rust code assists from the command line, LSP and MCP",
		Long: `rustassist generates From impls for enum variants.

Commands:
  propose   Propose the impl for the variant at a cursor
  scan      Report every variant that can get an impl
  lsp       Serve the assist as LSP code actions
  mcp       Serve the assist as MCP tools`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globals.ConfigPath, "config", "c", "", "config file (default .rustassist.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(
		NewProposeCommand(globals),
		NewScanCommand(globals),
		NewLSPCommand(globals),
		NewMCPCommand(globals),
		NewVersionCommand(),
	)

	return rootCmd
}
