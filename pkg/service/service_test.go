package service_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/rustassist/pkg/assist"
	"github.com/Sumatoshi-tech/rustassist/pkg/fixture"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/service"
	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
)

func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()

	return service.New(append([]service.Option{
		service.WithSemanticOptions(semantic.WithBuiltinCore()),
	}, opts...)...)
}

func TestPropose_SpanLogAndMetrics(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewAssistMetrics(mp.Meter("test"))
	require.NoError(t, err)

	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc := newService(t,
		service.WithTracer(tp.Tracer("test")),
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)

	file, err := svc.Parser().ParseString(context.Background(), "/lib.rs", "enum A { One(u32), Two }")
	require.NoError(t, err)

	db := semantic.NewDatabase(semantic.WithBuiltinCore())
	unit, err := db.AddUnit("lib")
	require.NoError(t, err)
	require.NoError(t, db.AddFile(unit, file))

	proposal, reason := svc.Propose(context.Background(), db, file, strings.Index(file.Source, "One"))
	require.NotNil(t, proposal)
	assert.Equal(t, assist.ReasonApplicable, reason)

	proposal, reason = svc.Propose(context.Background(), db, file, strings.Index(file.Source, "Two"))
	assert.Nil(t, proposal)
	assert.Equal(t, assist.ReasonUnitVariant, reason)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "rustassist.assist.propose", spans[0].Name())

	var gotReason string

	for _, kv := range spans[1].Attributes() {
		if kv.Key == "assist.reason" {
			gotReason = kv.Value.AsString()
		}
	}

	assert.Equal(t, "unit_variant", gotReason)
	assert.Contains(t, logs.String(), "assist not applicable")
	assert.Contains(t, logs.String(), "assist.reason=unit_variant")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || m.Name != "rustassist.assist.evaluations.total" {
				continue
			}

			for _, dp := range sum.DataPoints {
				r, _ := dp.Attributes.Value("reason")
				counts[r.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{"applicable": 1, "unit_variant": 1}, counts)
}

func TestScan(t *testing.T) {
	t.Parallel()

	svc := newService(t)

	file, err := svc.Parser().ParseString(context.Background(), "/lib.rs", `enum Msg {
    Text(String),
    Quit,
    Move { x: i32 },
    Pair(u8, u8),
}

impl From<String> for Msg {
    fn from(s: String) -> Self { Msg::Text(s) }
}
`)
	require.NoError(t, err)

	db := semantic.NewDatabase(semantic.WithBuiltinCore())
	unit, err := db.AddUnit("lib")
	require.NoError(t, err)
	require.NoError(t, db.AddFile(unit, file))

	rows := svc.Scan(context.Background(), db, file)
	require.Len(t, rows, 4)

	type outcome struct {
		variant string
		reason  assist.Reason
		line    int
	}

	got := make([]outcome, 0, len(rows))
	for _, row := range rows {
		assert.Equal(t, "Msg", row.Enum)
		assert.Equal(t, "/lib.rs", row.File)
		assert.Equal(t, row.Applicable, row.Proposal != nil)
		got = append(got, outcome{row.Variant, row.Reason, row.Position.Line})
	}

	assert.Equal(t, []outcome{
		{"Text", assist.ReasonAlreadyImplemented, 2},
		{"Quit", assist.ReasonUnitVariant, 3},
		{"Move", assist.ReasonApplicable, 4},
		{"Pair", assist.ReasonFieldCount, 5},
	}, got)
}

func TestProposeInline(t *testing.T) {
	t.Parallel()

	svc := newService(t)

	result, err := svc.ProposeInline(context.Background(), "enum A { $0One(u32) }")
	require.NoError(t, err)

	require.NotNil(t, result.Proposal)
	assert.Equal(t, assist.ReasonApplicable, result.Reason)
	assert.Equal(t, "/main.rs", result.File)
	assert.Equal(t,
		"enum A { One(u32) }\n\nimpl From<u32> for A {\n    fn from(v: u32) -> Self {\n        Self::One(v)\n    }\n}",
		result.Patched)
}

func TestProposeInline_MultiFileCore(t *testing.T) {
	t.Parallel()

	svc := service.New()

	code := `//- /main.rs crate:main deps:core
enum A { $0One(u32) }
impl core::convert::From<u32> for A { fn from(v: u32) -> Self { A::One(v) } }
` + fixture.Core

	result, err := svc.ProposeInline(context.Background(), code)
	require.NoError(t, err)

	assert.Nil(t, result.Proposal)
	assert.Equal(t, assist.ReasonAlreadyImplemented, result.Reason)
	assert.Empty(t, result.Patched)
}

func TestProposeInline_Errors(t *testing.T) {
	t.Parallel()

	svc := newService(t)

	_, err := svc.ProposeInline(context.Background(), "enum A { One(u32) }")
	require.ErrorIs(t, err, service.ErrNoCursor)

	_, err = svc.ProposeInline(context.Background(), "enum A { $0One($0u32) }")
	require.ErrorIs(t, err, fixture.ErrMultipleCursors)
}

func TestScanInline(t *testing.T) {
	t.Parallel()

	svc := newService(t)

	rows, err := svc.ScanInline(context.Background(), `//- /a.rs crate:a
enum A { One(u32) }
//- /b.rs crate:b
enum B { Two(String), Three }
`)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "/a.rs", rows[0].File)
	assert.True(t, rows[0].Applicable)
	assert.Equal(t, "B", rows[2].Enum)
	assert.Equal(t, assist.ReasonUnitVariant, rows[2].Reason)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	svc := service.New()
	require.NotNil(t, svc.Parser())

	file, err := syntax.NewParser().ParseString(context.Background(), "/x.rs", "enum E { V(u8) }")
	require.NoError(t, err)

	proposal, reason := svc.Propose(context.Background(), nil, file, strings.Index(file.Source, "V"))
	require.NotNil(t, proposal)
	assert.Equal(t, assist.ReasonApplicable, reason)
}
