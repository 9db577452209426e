// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
	Engine    EngineConfig    `toml:"engine"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Addr            *string `toml:"addr"`
	ShutdownTimeout *string `toml:"shutdown-timeout"`
}

// StoreConfig maps database settings.
type StoreConfig struct {
	Path *string `toml:"path"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
	File   *string `toml:"file"`
}

// EngineConfig maps focus pipeline tunables and working-set limits.
type EngineConfig struct {
	WindowSize          *int     `toml:"window-size"`
	SlackWords          *int     `toml:"regression-slack-words"`
	SlackLines          *int     `toml:"regression-slack-lines"`
	RegressionThreshold *float64 `toml:"regression-threshold"`
	MinRateSamples      *int     `toml:"min-rate-samples"`
	FocusThreshold      *float64 `toml:"focus-threshold"`
	Hysteresis          *int     `toml:"hysteresis"`
	StepCap             *float64 `toml:"step-cap"`
	InitialScore        *float64 `toml:"initial-score"`
	DwellBaselineMs     *float64 `toml:"dwell-baseline-ms"`
	DwellOctaves        *float64 `toml:"dwell-octaves"`
	ChurnPerMinute      *int     `toml:"churn-max-per-minute"`
	ReorderSlackMs      *int64   `toml:"reorder-slack-ms"`
	IdleTTL             *string  `toml:"idle-ttl"`
	WorkingSetSize      *int     `toml:"working-set-size"`
}

// TelemetryConfig maps tracing export settings.
type TelemetryConfig struct {
	OTLPEndpoint *string `toml:"otlp-endpoint"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
