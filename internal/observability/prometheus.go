package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusExporter bridges OTel instruments to a Prometheus scrape
// endpoint. Reader goes into observability.Config.MetricReaders; Handler
// serves /metrics.
type PrometheusExporter struct {
	Reader  sdkmetric.Reader
	Handler http.Handler
}

// NewPrometheusExporter creates an exporter with its own registry, so
// repeated calls never collide on collector registration.
func NewPrometheusExporter() (*PrometheusExporter, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PrometheusExporter{
		Reader:  exporter,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}
