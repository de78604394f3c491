package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rustassist/pkg/mcp"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(globals *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the assist as tools that AI agents can discover and
invoke on inline Rust code:
  - ` + mcp.ToolNamePropose + `: Propose a From impl at the $0 cursor
  - ` + mcp.ToolNameScan + `: Evaluate the assist on every enum variant`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, globals, observability.ModeMCP, func(ctx context.Context, e *env) error {
				err := e.serveDiagnostics()
				if err != nil {
					return err
				}

				srv := mcp.NewServer(mcp.ServerDeps{
					Service: e.service(),
					Logger:  e.logger,
					Metrics: e.red,
					Tracer:  e.providers.Tracer,
				})

				return srv.Run(ctx)
			})
		},
	}
}
