package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricEvaluationsTotal = "rustassist.assist.evaluations.total"
	metricFilesParsed      = "rustassist.workspace.files.total"
	metricBytesParsed      = "rustassist.workspace.bytes.total"
	metricParseDuration    = "rustassist.workspace.parse.duration.seconds"

	attrAssist = "assist"
	attrReason = "reason"
)

// AssistMetrics holds OTel instruments for assist evaluations and workspace
// loading.
type AssistMetrics struct {
	evaluations   metric.Int64Counter
	filesParsed   metric.Int64Counter
	bytesParsed   metric.Int64Counter
	parseDuration metric.Float64Histogram
}

// NewAssistMetrics creates assist metric instruments from the given meter.
func NewAssistMetrics(mt metric.Meter) (*AssistMetrics, error) {
	in := &instruments{meter: mt}

	am := &AssistMetrics{
		evaluations:   in.count(metricEvaluationsTotal, "Assist evaluations by outcome", "{evaluation}"),
		filesParsed:   in.count(metricFilesParsed, "Source files parsed", "{file}"),
		bytesParsed:   in.count(metricBytesParsed, "Source bytes parsed", "By"),
		parseDuration: in.seconds(metricParseDuration, "Workspace load duration"),
	}

	err := in.err()
	if err != nil {
		return nil, err
	}

	return am, nil
}

// RecordEvaluation counts one evaluation of assist with its outcome reason.
// Safe to call on a nil receiver (no-op).
func (am *AssistMetrics) RecordEvaluation(ctx context.Context, assist, reason string) {
	if am == nil {
		return
	}

	am.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAssist, assist),
		attribute.String(attrReason, reason),
	))
}

// RecordLoad records a completed workspace load.
// Safe to call on a nil receiver (no-op).
func (am *AssistMetrics) RecordLoad(ctx context.Context, files int, bytes int64, duration time.Duration) {
	if am == nil {
		return
	}

	am.filesParsed.Add(ctx, int64(files))
	am.bytesParsed.Add(ctx, bytes)
	am.parseDuration.Record(ctx, duration.Seconds())
}
