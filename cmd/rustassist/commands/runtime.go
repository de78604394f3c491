package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rustassist/internal/config"
	internalobs "github.com/Sumatoshi-tech/rustassist/internal/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/service"
	"github.com/Sumatoshi-tech/rustassist/pkg/version"
	"github.com/Sumatoshi-tech/rustassist/pkg/workspace"
)

// Globals holds the persistent flags of the root command.
type Globals struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// env is the per-invocation state shared by subcommands: configuration,
// telemetry providers and the optional diagnostics server.
type env struct {
	cfg       *config.Config
	providers observability.Providers
	red       *observability.REDMetrics
	metrics   *observability.AssistMetrics
	exporter  *internalobs.PrometheusExporter
	diag      *internalobs.DiagnosticsServer
	logger    *slog.Logger
}

func setup(cmd *cobra.Command, globals *Globals, mode observability.AppMode) (*env, error) {
	cfg, err := config.LoadConfig(globals.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.LogJSON = mode != observability.ModeCLI

	cfg.ApplyToObservability(&obsCfg)

	switch {
	case globals.Verbose:
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.TraceVerbose = true
	case globals.Quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	state := &env{cfg: cfg}

	if cfg.Diagnostics.Addr != "" {
		state.exporter, err = internalobs.NewPrometheusExporter()
		if err != nil {
			return nil, err
		}

		obsCfg.MetricReaders = append(obsCfg.MetricReaders, state.exporter.Reader)
	}

	state.providers, err = observability.InitWithWriter(obsCfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	state.logger = state.providers.Logger

	state.red, err = observability.NewREDMetrics(state.providers.Meter)
	if err != nil {
		return nil, errors.Join(err, state.close())
	}

	state.metrics, err = observability.NewAssistMetrics(state.providers.Meter)
	if err != nil {
		return nil, errors.Join(err, state.close())
	}

	return state, nil
}

// serveDiagnostics starts the diagnostics server when one is configured.
func (e *env) serveDiagnostics(checks ...internalobs.ReadyCheck) error {
	if e.cfg.Diagnostics.Addr == "" {
		return nil
	}

	diag, err := internalobs.NewDiagnosticsServer(e.cfg.Diagnostics.Addr, internalobs.DiagnosticsOptions{
		Metrics:     e.exporter.Handler,
		ReadyChecks: checks,
		Tracer:      e.providers.Tracer,
		RED:         e.red,
		Logger:      observability.Component(e.logger, "diagnostics"),
	})
	if err != nil {
		return err
	}

	e.diag = diag

	return nil
}

func (e *env) close() error {
	var errs []error

	if e.diag != nil {
		errs = append(errs, e.diag.Close())
	}

	if e.providers.Shutdown != nil {
		shutdownErr := e.providers.Shutdown(context.Background())
		if shutdownErr != nil {
			e.logger.Warn("observability shutdown failed", "error", shutdownErr)
			errs = append(errs, shutdownErr)
		}
	}

	return errors.Join(errs...)
}

func (e *env) service() *service.Service {
	return service.New(
		service.WithLogger(e.logger),
		service.WithTracer(e.providers.Tracer),
		service.WithMetrics(e.metrics),
		service.WithSemanticOptions(e.cfg.SemanticOptions()...),
	)
}

func (e *env) workspaceOptions(svc *service.Service) (workspace.Options, error) {
	maxSize, err := e.cfg.Workspace.MaxFileSizeBytes()
	if err != nil {
		return workspace.Options{}, err
	}

	return workspace.Options{
		MaxFileSize: maxSize,
		Workers:     e.cfg.Workspace.Workers,
		ExcludeDirs: e.cfg.Workspace.ExcludeDirs,
		Semantic:    e.cfg.SemanticOptions(),
		Parser:      svc.Parser(),
		Logger:      e.logger,
		Tracer:      e.providers.Tracer,
		Metrics:     e.metrics,
	}, nil
}

// run wraps a subcommand body with setup and teardown.
func run(
	cmd *cobra.Command, globals *Globals, mode observability.AppMode,
	body func(ctx context.Context, e *env) error,
) (err error) {
	state, err := setup(cmd, globals, mode)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := state.close()
		if err == nil {
			err = closeErr
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return body(ctx, state)
}
