// Package observability serves the operational endpoints of long-running
// hosts: liveness, readiness and Prometheus metrics.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	pkgobs "github.com/Sumatoshi-tech/rustassist/pkg/observability"
)

const readHeaderTimeout = 5 * time.Second

// DiagnosticsOptions configures a DiagnosticsServer.
type DiagnosticsOptions struct {
	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler

	// ReadyChecks gate /readyz.
	ReadyChecks []ReadyCheck

	// Tracer and RED wrap every request when set.
	Tracer trace.Tracer
	RED    *pkgobs.REDMetrics

	Logger *slog.Logger
}

// DiagnosticsServer exposes health, readiness, and Prometheus metrics
// endpoints over HTTP for operational monitoring.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewDiagnosticsServer starts an HTTP server at addr with /healthz, /readyz
// and, when opts.Metrics is set, /metrics.
func NewDiagnosticsServer(addr string, opts DiagnosticsOptions) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(opts.ReadyChecks...))

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	var handler http.Handler = mux
	if opts.Tracer != nil {
		handler = pkgobs.HTTPMiddleware(opts.Tracer, opts.RED, mux)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	logger.Info("diagnostics server listening", "addr", listener.Addr().String())

	return &DiagnosticsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close() error {
	err := d.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
