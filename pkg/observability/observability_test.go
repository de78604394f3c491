package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()

	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64

	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value

			continue
		}

		if got, ok := dp.Attributes.Value(attribute.Key(key)); ok && got.AsString() == value {
			total += dp.Value
		}
	}

	return total
}

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)

	_, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_MetricReadersReceiveInstruments(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()

	cfg := observability.DefaultConfig()
	cfg.MetricReaders = []sdkmetric.Reader{reader}

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	metrics, err := observability.NewAssistMetrics(providers.Meter)
	require.NoError(t, err)

	metrics.RecordEvaluation(context.Background(), "generate_from_impl_for_enum", "applicable")

	rm := collectMetrics(t, reader)
	require.NotNil(t, findMetric(rm, "rustassist.assist.evaluations.total"))
}

func TestInitWithWriter_JSONLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.Mode = observability.ModeLSP
	cfg.Environment = "test"

	providers, err := observability.InitWithWriter(cfg, &buf)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	providers.Logger.Info("ready")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "rustassist", record["service"])
	assert.Equal(t, "lsp", record["mode"])
	assert.Equal(t, "test", record["env"])
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", "", observability.ModeCLI))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	logger.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "message")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "cli", record["mode"])

	_, hasEnv := record["env"]
	assert.False(t, hasEnv)
}

func TestTracingHandler_GroupsKeepServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "rustassist", "", observability.ModeMCP))

	logger.WithGroup("scan").InfoContext(context.Background(), "done", slog.Int("variants", 3))

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "rustassist", record["service"])

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)

	scan, ok := record["scan"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3, scan["variants"], 0)
}

func TestComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := observability.Component(slog.New(slog.NewJSONHandler(&buf, nil)), "lsp")
	logger.Info("hello")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "lsp", record["component"])

	assert.NotNil(t, observability.Component(nil, "x"))
}

func TestComponent_TopLevelUnderGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := observability.NewTracingHandler(slog.NewJSONHandler(&buf, nil), "rustassist", "", observability.ModeLSP)
	logger := observability.Component(slog.New(handler), "lsp").WithGroup("request")
	logger.Info("code action", "uri", "file:///lib.rs")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "lsp", record["component"])
	assert.Equal(t, "rustassist", record["service"])
	assert.Equal(t, string(observability.ModeLSP), record["mode"])
	assert.NotContains(t, record, "env")
	assert.Equal(t, map[string]any{"uri": "file:///lib.rs"}, record["request"])
}

func TestREDMetrics(t *testing.T) {
	t.Parallel()

	reader, mp := newManualMeter(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	done := red.TrackInflight(ctx, "propose")
	red.RecordRequest(ctx, "propose", observability.StatusOK, time.Millisecond)
	red.RecordRequest(ctx, "scan", observability.StatusError, time.Second)
	done()

	rm := collectMetrics(t, reader)

	requests := findMetric(rm, "rustassist.requests.total")
	require.NotNil(t, requests)
	assert.Equal(t, int64(2), sumValue(t, requests, "", ""))

	errs := findMetric(rm, "rustassist.errors.total")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumValue(t, errs, "op", "scan"))

	require.NotNil(t, findMetric(rm, "rustassist.request.duration.seconds"))
	require.NotNil(t, findMetric(rm, "rustassist.inflight.requests"))
}

func TestAssistMetrics(t *testing.T) {
	t.Parallel()

	reader, mp := newManualMeter(t)

	metrics, err := observability.NewAssistMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordEvaluation(ctx, "generate_from_impl_for_enum", "applicable")
	metrics.RecordEvaluation(ctx, "generate_from_impl_for_enum", "unit_variant")
	metrics.RecordEvaluation(ctx, "generate_from_impl_for_enum", "applicable")
	metrics.RecordLoad(ctx, 4, 2048, 20*time.Millisecond)

	rm := collectMetrics(t, reader)

	evaluations := findMetric(rm, "rustassist.assist.evaluations.total")
	require.NotNil(t, evaluations)
	assert.Equal(t, int64(2), sumValue(t, evaluations, "reason", "applicable"))
	assert.Equal(t, int64(1), sumValue(t, evaluations, "reason", "unit_variant"))

	files := findMetric(rm, "rustassist.workspace.files.total")
	require.NotNil(t, files)
	assert.Equal(t, int64(4), sumValue(t, files, "", ""))

	bytesParsed := findMetric(rm, "rustassist.workspace.bytes.total")
	require.NotNil(t, bytesParsed)
	assert.Equal(t, int64(2048), sumValue(t, bytesParsed, "", ""))
}

func TestAssistMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var metrics *observability.AssistMetrics

	assert.NotPanics(t, func() {
		metrics.RecordEvaluation(context.Background(), "a", "b")
		metrics.RecordLoad(context.Background(), 1, 1, time.Second)
	})
}

func newTestProvider() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return exporter, tp
}

func TestFilteringTracerProvider(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	tracer := observability.NewFilteringTracerProvider(base).Tracer("rustassist")

	_, kept := tracer.Start(context.Background(), "rustassist.scan")
	kept.End()

	_, dropped := tracer.Start(context.Background(), observability.SpanScanVariant)
	dropped.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "rustassist.scan", spans[0].Name)
}

func TestRedactingProcessor(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewRedactingProcessor(sdktrace.NewSimpleSpanProcessor(exporter))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("file.path", "/src/main.rs"),
		attribute.String("file.content", "enum A {}"),
		attribute.String("assist.reason", "applicable"),
		attribute.String("user.name", "someone"),
		attribute.String("random.key", "x"),
		attribute.String("assist.inserted_text", "impl From<u32> for A {}"),
		attribute.Bool("error", true),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	keys := make(map[string]bool)
	for _, kv := range spans[0].Attributes {
		keys[string(kv.Key)] = true
	}

	assert.Equal(t, map[string]bool{"file.path": true, "assist.reason": true, "error": true}, keys)
}

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestProvider()
	reader, mp := newManualMeter(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	handler := observability.HTTPMiddleware(tp.Tracer("test"), red, http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /readyz", spans[0].Name)

	errs := findMetric(collectMetrics(t, reader), "rustassist.errors.total")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumValue(t, errs, "op", "GET /readyz"))
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("novalue"))
	assert.Equal(t,
		map[string]string{"api-key": "abc", "team": "x"},
		observability.ParseOTLPHeaders("api-key=abc, team = x"),
	)
}
