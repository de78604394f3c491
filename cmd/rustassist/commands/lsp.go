package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rustassist/pkg/lsp"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/workspace"
)

// NewLSPCommand creates the lsp subcommand.
func NewLSPCommand(globals *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the language server on stdio",
		Long: `Start a Language Server Protocol server on stdio.

The server loads the client's workspace root on initialize and offers the
"generate From impl" assist as a refactor.rewrite code action on open
documents. Logs go to stderr as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, globals, observability.ModeLSP, func(_ context.Context, e *env) error {
				srv, err := newLSPServer(e)
				if err != nil {
					return err
				}

				err = e.serveDiagnostics(srv.Ready)
				if err != nil {
					return err
				}

				return srv.Run()
			})
		},
	}
}

func newLSPServer(e *env) (*lsp.Server, error) {
	svc := e.service()

	wsOpts, err := e.workspaceOptions(svc)
	if err != nil {
		return nil, err
	}

	return lsp.NewServer(lsp.Options{
		Service: svc,
		Loader: func(ctx context.Context, root string) (lsp.Workspace, error) {
			ws, loadErr := workspace.Load(ctx, wsOpts, root)
			if loadErr != nil {
				return nil, loadErr
			}

			return ws, nil
		},
		Semantic: e.cfg.SemanticOptions(),
		Logger:   e.logger,
		RED:      e.red,
	}), nil
}
