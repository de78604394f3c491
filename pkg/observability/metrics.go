package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "rustassist.requests.total"
	metricRequestDuration  = "rustassist.request.duration.seconds"
	metricErrorsTotal      = "rustassist.errors.total"
	metricInflightRequests = "rustassist.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK marks a request that completed without error.
	StatusOK = "ok"
	// StatusError marks a failed request.
	StatusError = "error"
)

// durationBucketBoundaries covers 100µs to 30s: single proposals take
// microseconds, workspace scans take seconds.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	in := &instruments{meter: mt}

	rm := &REDMetrics{
		requestsTotal:    in.count(metricRequestsTotal, "Requests handled by host and operation", "{request}"),
		requestDuration:  in.seconds(metricRequestDuration, "Request latency"),
		errorsTotal:      in.count(metricErrorsTotal, "Requests that failed", "{error}"),
		inflightRequests: in.gauge(metricInflightRequests, "Requests being handled", "{request}"),
	}

	err := in.err()
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// RecordRequest records a completed request with its operation, status, and duration.
// Safe to call on a nil receiver (no-op).
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
// Safe to call on a nil receiver.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if rm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}
