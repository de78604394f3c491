package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Hot-path span names dropped unless verbose tracing is on.
const (
	SpanScanVariant = "rustassist.scan.variant"
	SpanParseFile   = "rustassist.workspace.parse_file"
)

// filteringTracerProvider wraps a real TracerProvider and replaces hot-path
// spans with no-op spans.
type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate        trace.TracerProvider
	noop            trace.TracerProvider
	suppressedSpans map[string]bool
}

// NewFilteringTracerProvider wraps delegate so that per-variant and
// per-file spans are dropped while request-level spans are kept.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{
		delegate: delegate,
		noop:     nooptrace.NewTracerProvider(),
		suppressedSpans: map[string]bool{
			SpanScanVariant: true,
			SpanParseFile:   true,
		},
	}
}

// Tracer returns a tracer that suppresses hot-path spans.
func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{
		delegate: f.delegate.Tracer(name, opts...),
		noop:     f.noop.Tracer(name, opts...),
		suppress: f.suppressedSpans,
	}
}

type filteringTracer struct {
	embedded.Tracer

	delegate trace.Tracer
	noop     trace.Tracer
	suppress map[string]bool
}

// Start creates a span, returning a noop span for suppressed names.
func (f *filteringTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if f.suppress[name] {
		return f.noop.Start(ctx, name, opts...)
	}

	return f.delegate.Start(ctx, name, opts...)
}
