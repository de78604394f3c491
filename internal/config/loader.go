package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".rustassist"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for rustassist settings.
const envPrefix = "RUSTASSIST"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	if used := viperCfg.ConfigFileUsed(); used != "" && readErr == nil {
		schemaErr := validateFile(used)
		if schemaErr != nil {
			return nil, fmt.Errorf("validate config %s: %w", used, schemaErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// validateFile checks the file's own settings against the schema. Defaults
// and environment values are left out since env values arrive as strings.
func validateFile(path string) error {
	fileCfg := viper.New()
	fileCfg.SetConfigType(configType)
	fileCfg.SetConfigFile(path)

	err := fileCfg.ReadInConfig()
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	return ValidateSchema(fileCfg.AllSettings())
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("semantic.builtin_core", DefaultBuiltinCore)
	viperCfg.SetDefault("semantic.prelude_units", DefaultPreludeUnits())

	viperCfg.SetDefault("workspace.max_file_size", DefaultMaxFileSize)
	viperCfg.SetDefault("workspace.workers", DefaultWorkers)
	viperCfg.SetDefault("workspace.exclude_dirs", DefaultExcludeDirs())

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.color", DefaultOutputColor)

	viperCfg.SetDefault("diagnostics.addr", DefaultDiagnosticsAddr)

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.json", DefaultLogJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
}
