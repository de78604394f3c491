package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys. Every record carries service and mode, env when
// configured, trace_id and span_id inside a sampled or remote span, and
// component when it was logged through a Component logger.
const (
	attrTraceID   = "trace_id"
	attrSpanID    = "span_id"
	attrService   = "service"
	attrEnv       = "env"
	attrMode      = "mode"
	attrComponent = "component"
)

// TracingHandler is the [slog.Handler] installed by Init. It correlates
// rustassist log records with the span of the assist request that emitted
// them, so a proposal logged by the LSP host can be found next to its
// rustassist.assist.propose span.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner. The service, env and mode attributes are
// bound here rather than per record so they stay top-level when callers
// open groups.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	bound := []slog.Attr{slog.String(attrService, service), slog.String(attrMode, string(appMode))}
	if env != "" {
		bound = append(bound, slog.String(attrEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(bound)}
}

// Enabled implements [slog.Handler].
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle implements [slog.Handler].
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

// Component returns a logger whose records carry component=name. The
// packages use it to tag their output: "lsp", "service", "workspace",
// "diagnostics". A nil logger falls back to [slog.Default].
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}

	return logger.With(slog.String(attrComponent, name))
}
