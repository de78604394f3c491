package config

import (
	"errors"
	"slices"

	"fortio.org/safecast"
	"github.com/dustin/go-humanize"
)

// Config is the top-level configuration struct for rustassist.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Semantic    SemanticConfig    `mapstructure:"semantic"`
	Workspace   WorkspaceConfig   `mapstructure:"workspace"`
	Output      OutputConfig      `mapstructure:"output"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Log         LogConfig         `mapstructure:"log"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// SemanticConfig controls how the semantic model resolves well-known traits.
type SemanticConfig struct {
	BuiltinCore  bool     `mapstructure:"builtin_core"`
	PreludeUnits []string `mapstructure:"prelude_units"`
}

// WorkspaceConfig holds workspace loading knobs.
type WorkspaceConfig struct {
	MaxFileSize string   `mapstructure:"max_file_size"`
	Workers     int      `mapstructure:"workers"`
	ExcludeDirs []string `mapstructure:"exclude_dirs"`
}

// OutputConfig holds CLI rendering settings.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  string `mapstructure:"color"`
}

// DiagnosticsConfig holds the diagnostics HTTP server address. Empty disables it.
type DiagnosticsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OTLP export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("workspace.workers must be non-negative")
	// ErrInvalidMaxFileSize indicates the max file size does not parse or is zero.
	ErrInvalidMaxFileSize = errors.New("workspace.max_file_size must be a positive size such as 1MiB")
	// ErrInvalidFormat indicates an unknown output format.
	ErrInvalidFormat = errors.New("output.format must be text, json or yaml")
	// ErrInvalidColor indicates an unknown color mode.
	ErrInvalidColor = errors.New("output.color must be auto, always or never")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("log.level must be debug, info, warn or error")
	// ErrInvalidSampleRatio indicates the sample ratio is out of range.
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
	// ErrEmptyPreludeUnit indicates a blank prelude unit name.
	ErrEmptyPreludeUnit = errors.New("semantic.prelude_units must not contain empty names")
)

var (
	validFormats   = []string{FormatText, FormatJSON, FormatYAML}
	validColors    = []string{ColorAuto, ColorAlways, ColorNever}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// sampleRatioMax is the upper bound for the trace sample ratio.
const sampleRatioMax = 1.0

// Validate checks Config invariants and returns the first error found.
// Empty enum-like strings are accepted and mean "use the default".
func (c *Config) Validate() error {
	workspaceErr := c.validateWorkspace()
	if workspaceErr != nil {
		return workspaceErr
	}

	if slices.Contains(c.Semantic.PreludeUnits, "") {
		return ErrEmptyPreludeUnit
	}

	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return ErrInvalidFormat
	}

	if c.Output.Color != "" && !slices.Contains(validColors, c.Output.Color) {
		return ErrInvalidColor
	}

	if c.Log.Level != "" && !slices.Contains(validLogLevels, c.Log.Level) {
		return ErrInvalidLogLevel
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > sampleRatioMax {
		return ErrInvalidSampleRatio
	}

	return nil
}

func (c *Config) validateWorkspace() error {
	if c.Workspace.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Workspace.MaxFileSize != "" {
		_, err := c.Workspace.MaxFileSizeBytes()
		if err != nil {
			return err
		}
	}

	return nil
}

// MaxFileSizeBytes parses workspace.max_file_size. An empty value yields
// DefaultMaxFileSizeBytes.
func (w WorkspaceConfig) MaxFileSizeBytes() (int64, error) {
	if w.MaxFileSize == "" {
		return DefaultMaxFileSizeBytes, nil
	}

	size, err := humanize.ParseBytes(w.MaxFileSize)
	if err != nil || size == 0 {
		return 0, ErrInvalidMaxFileSize
	}

	bytes, err := safecast.Conv[int64](size)
	if err != nil {
		return 0, ErrInvalidMaxFileSize
	}

	return bytes, nil
}
