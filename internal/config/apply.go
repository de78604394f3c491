package config

import (
	"log/slog"

	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
)

// SemanticOptions translates the semantic section into database options.
func (c *Config) SemanticOptions() []semantic.Option {
	var opts []semantic.Option

	if c.Semantic.BuiltinCore {
		opts = append(opts, semantic.WithBuiltinCore())
	}

	if len(c.Semantic.PreludeUnits) > 0 {
		opts = append(opts, semantic.WithPreludeUnits(c.Semantic.PreludeUnits...))
	}

	return opts
}

// ApplyToObservability merges log and telemetry settings into obs.
// Zero values keep what obs already holds.
func (c *Config) ApplyToObservability(obs *observability.Config) {
	if c.Log.Level != "" {
		obs.LogLevel = parseLevel(c.Log.Level)
	}

	if c.Log.JSON {
		obs.LogJSON = true
	}

	if c.Telemetry.OTLPEndpoint != "" {
		obs.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	}

	if c.Telemetry.OTLPInsecure {
		obs.OTLPInsecure = true
	}

	if c.Telemetry.SampleRatio > 0 {
		obs.SampleRatio = c.Telemetry.SampleRatio
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
