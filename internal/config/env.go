package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds FOCUSFLOW_* overrides. Unset variables stay nil.
type EnvConfig struct {
	Addr         *string `env:"ADDR"`
	DBPath       *string `env:"DB_PATH"`
	LogLevel     *string `env:"LOG_LEVEL"`
	LogFormat    *string `env:"LOG_FORMAT"`
	LogFile      *string `env:"LOG_FILE"`
	OTLPEndpoint *string `env:"OTLP_ENDPOINT"`

	WindowSize          *int     `env:"WINDOW_SIZE"`
	RegressionThreshold *float64 `env:"REGRESSION_THRESHOLD"`
	FocusThreshold      *float64 `env:"FOCUS_THRESHOLD"`
	Hysteresis          *int     `env:"HYSTERESIS"`
	ReorderSlackMs      *int64   `env:"REORDER_SLACK_MS"`
	IdleTTL             *string  `env:"IDLE_TTL"`
	WorkingSetSize      *int     `env:"WORKING_SET_SIZE"`
}

const envPrefix = "FOCUSFLOW_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv reads the FOCUSFLOW_* overrides.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := ParseEnv(&cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Overlay returns file with every set environment value applied on top.
func Overlay(file FileConfig, e EnvConfig) FileConfig {
	out := file
	overlay(&out.Server.Addr, e.Addr)
	overlay(&out.Store.Path, e.DBPath)
	overlay(&out.Log.Level, e.LogLevel)
	overlay(&out.Log.Format, e.LogFormat)
	overlay(&out.Log.File, e.LogFile)
	overlay(&out.Telemetry.OTLPEndpoint, e.OTLPEndpoint)
	overlay(&out.Engine.WindowSize, e.WindowSize)
	overlay(&out.Engine.RegressionThreshold, e.RegressionThreshold)
	overlay(&out.Engine.FocusThreshold, e.FocusThreshold)
	overlay(&out.Engine.Hysteresis, e.Hysteresis)
	overlay(&out.Engine.ReorderSlackMs, e.ReorderSlackMs)
	overlay(&out.Engine.IdleTTL, e.IdleTTL)
	overlay(&out.Engine.WorkingSetSize, e.WorkingSetSize)
	return out
}

func overlay[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
