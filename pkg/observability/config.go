// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for every rustassist host (CLI, LSP, MCP).
package observability

import (
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is the one-shot CLI command mode.
	ModeCLI AppMode = "cli"
	// ModeLSP is the language server mode.
	ModeLSP AppMode = "lsp"
	// ModeMCP is the MCP stdio server mode.
	ModeMCP AppMode = "mcp"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "rustassist"

	// defaultShutdownTimeoutSec is the default shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// SampleRatio is the trace sampling ratio (0.0 to 1.0).
	// Zero keeps parent-based sampling with an always-on root.
	SampleRatio float64

	// MetricReaders are extra metric readers, such as the Prometheus
	// exporter of the diagnostics server. With no endpoint and no readers
	// the meter provider is a no-op.
	MetricReaders []sdkmetric.Reader

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// TraceVerbose keeps per-variant spans that are dropped by default.
	TraceVerbose bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with sensible defaults for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
