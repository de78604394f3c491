package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseRecorder remembers the first status code sent through it.
type responseRecorder struct {
	http.ResponseWriter

	code int
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.code == 0 {
		rr.code = code
	}

	rr.ResponseWriter.WriteHeader(code)
}

//nolint:wrapcheck // pass-through of the wrapped writer
func (rr *responseRecorder) Write(buf []byte) (int, error) {
	if rr.code == 0 {
		rr.code = http.StatusOK
	}

	return rr.ResponseWriter.Write(buf)
}

func (rr *responseRecorder) status() int {
	if rr.code == 0 {
		return http.StatusOK
	}

	return rr.code
}

// HTTPMiddleware traces each request as a server span named
// "METHOD /path" and feeds red, which may be nil. 5xx responses count as
// errors.
func HTTPMiddleware(tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		op := hr.Method + " " + hr.URL.Path
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))
		ctx, span := tracer.Start(ctx, op,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				attribute.String("http.route", hr.URL.Path),
			),
		)
		defer span.End()

		done := red.TrackInflight(ctx, op)
		defer done()

		rec := &responseRecorder{ResponseWriter: rw}
		next.ServeHTTP(rec, hr.WithContext(ctx))

		code := rec.status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(code))

		status := StatusOK
		if code >= http.StatusInternalServerError {
			status = StatusError

			span.SetStatus(codes.Error, http.StatusText(code))
		}

		red.RecordRequest(ctx, op, status, time.Since(start))
	})
}
