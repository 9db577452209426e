package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Server.Addr)
	assert.Nil(t, cfg.Engine.WindowSize)
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
addr = ":9000"

[store]
path = "/tmp/ff.db"

[log]
level = "debug"
format = "json"

[engine]
window-size = 30
regression-threshold = 0.25
idle-ttl = "5m"

[telemetry]
otlp-endpoint = "http://localhost:4318"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Server.Addr)
	assert.Equal(t, ":9000", *cfg.Server.Addr)
	assert.Equal(t, "/tmp/ff.db", *cfg.Store.Path)
	assert.Equal(t, "debug", *cfg.Log.Level)
	assert.Equal(t, "json", *cfg.Log.Format)
	assert.Nil(t, cfg.Log.File)
	assert.Equal(t, 30, *cfg.Engine.WindowSize)
	assert.InDelta(t, 0.25, *cfg.Engine.RegressionThreshold, 1e-9)
	assert.Equal(t, "5m", *cfg.Engine.IdleTTL)
	assert.Nil(t, cfg.Engine.Hysteresis)
	assert.Equal(t, "http://localhost:4318", *cfg.Telemetry.OTLPEndpoint)
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\nwindow = 3\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.window")
}

func TestLoadConfigEmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("FOCUSFLOW_ADDR", ":7000")
	t.Setenv("FOCUSFLOW_WINDOW_SIZE", "12")
	t.Setenv("FOCUSFLOW_FOCUS_THRESHOLD", "55.5")

	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Nil(t, e.DBPath)

	fileAddr := ":9000"
	fileLevel := "warn"
	file := FileConfig{
		Server: ServerConfig{Addr: &fileAddr},
		Log:    LogConfig{Level: &fileLevel},
	}
	merged := Overlay(file, e)
	assert.Equal(t, ":7000", *merged.Server.Addr)
	assert.Equal(t, "warn", *merged.Log.Level)
	assert.Equal(t, 12, *merged.Engine.WindowSize)
	assert.InDelta(t, 55.5, *merged.Engine.FocusThreshold, 1e-9)
	assert.Equal(t, ":9000", fileAddr)
}

func TestLoadEnvInvalidNumber(t *testing.T) {
	t.Setenv("FOCUSFLOW_HYSTERESIS", "two")
	_, err := LoadEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/cfg", "focusflow", "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/data", "focusflow", "focusflow.db"), DefaultDBPath())
}
