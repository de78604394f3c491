package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "rustassist"
	meterName  = "rustassist"
)

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// Shutdown flushes all pending telemetry and releases resources.
	// Must be called before process exit.
	Shutdown func(ctx context.Context) error
}

// Init initializes OpenTelemetry tracing, metrics, and structured logging.
// Logs go to stderr; stdout stays free for LSP and MCP framing.
func Init(cfg Config) (Providers, error) {
	return InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter is Init with an explicit log destination. The providers
// are also installed as the otel globals.
func InitWithWriter(cfg Config, logOut io.Writer) (Providers, error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}

	var closers shutdownChain

	tp, err := newTracerProvider(ctx, cfg, res, &closers)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("tracer provider: %w", err), closers.run(ctx, cfg))
	}

	mp, err := newMeterProvider(ctx, cfg, res, &closers)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("meter provider: %w", err), closers.run(ctx, cfg))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return Providers{
		Tracer: tp.Tracer(tracerName),
		Meter:  mp.Meter(meterName),
		Logger: newLogger(cfg, logOut),
		Shutdown: func(shutdownCtx context.Context) error {
			return closers.run(shutdownCtx, cfg)
		},
	}, nil
}

// shutdownChain collects provider shutdown hooks.
type shutdownChain []func(context.Context) error

// run calls every hook under the configured timeout.
func (sc shutdownChain) run(ctx context.Context, cfg Config) error {
	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeoutSec * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errs := make([]error, 0, len(sc))
	for _, hook := range sc {
		errs = append(errs, hook(ctx))
	}

	return errors.Join(errs...)
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(cfg.Mode)))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	return res, nil
}

// newTracerProvider exports over OTLP when an endpoint is set and is a
// no-op otherwise. Hot-path spans are dropped unless TraceVerbose.
func newTracerProvider(
	ctx context.Context, cfg Config, res *resource.Resource, closers *shutdownChain,
) (trace.TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	sdkProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewRedactingProcessor(sdktrace.NewBatchSpanProcessor(exporter))),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	*closers = append(*closers, sdkProvider.Shutdown)

	if cfg.TraceVerbose {
		return sdkProvider, nil
	}

	return NewFilteringTracerProvider(sdkProvider), nil
}

func sampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.AlwaysSample()
	if ratio > 0 {
		root = sdktrace.TraceIDRatioBased(ratio)
	}

	return sdktrace.ParentBased(root)
}

// newMeterProvider feeds the extra readers and, with an endpoint, an OTLP
// exporter. With neither it is a no-op.
func newMeterProvider(
	ctx context.Context, cfg Config, res *resource.Resource, closers *shutdownChain,
) (metric.MeterProvider, error) {
	if cfg.OTLPEndpoint == "" && len(cfg.MetricReaders) == 0 {
		return noopmetric.NewMeterProvider(), nil
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range cfg.MetricReaders {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(cfg.OTLPHeaders) > 0 {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
		}

		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	sdkProvider := sdkmetric.NewMeterProvider(opts...)
	*closers = append(*closers, sdkProvider.Shutdown)

	return sdkProvider, nil
}

func newLogger(cfg Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(NewTracingHandler(handler, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

// ParseOTLPHeaders parses "key=value,key=value" as used by
// OTEL_EXPORTER_OTLP_HEADERS. Pairs without "=" are ignored; nil is
// returned when nothing remains.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return headers
}
