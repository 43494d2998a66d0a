package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHome(t *testing.T) string {
	t.Helper()
	logger.SetOutput(io.Discard)
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := setupHome(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 2*time.Second, cfg.Monitor.RefreshInterval)
	assert.Equal(t, time.Second, cfg.Monitor.LaunchDelay)
	assert.Equal(t, model.Size{Width: 50, Height: 50}, cfg.Monitor.MinWindowSize())
	assert.Equal(t, DefaultSystemBundlePrefixes, cfg.Monitor.SystemBundlePrefixes)
	assert.Equal(t, 100, cfg.Focus.LiveWindowLimit)
	assert.Equal(t, 5, cfg.Focus.GeometryTolerance)
	assert.Equal(t, PolicyAny, cfg.Focus.Policy)
	assert.True(t, cfg.Registry.Watch)
	assert.Equal(t, DefaultEnabledApps, cfg.Registry.DefaultEnabled)
	assert.Equal(t, filepath.Join(home, ".config", "accordion", "registry.yaml"), cfg.Registry.Path)
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	setupHome(t)

	path := filepath.Join(t.TempDir(), "accordion.yaml")
	content := `
log_level: debug
server_port: 9090
monitor:
  refresh_interval: 5s
  min_window_width: 120
focus:
  policy: all
registry:
  path: /tmp/registry.yaml
  default_enabled: [firefox]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.Monitor.RefreshInterval)
	assert.Equal(t, 120, cfg.Monitor.MinWindowWidth)
	assert.Equal(t, 50, cfg.Monitor.MinWindowHeight)
	assert.Equal(t, PolicyAll, cfg.Focus.Policy)
	assert.Equal(t, "/tmp/registry.yaml", cfg.Registry.Path)
	assert.Equal(t, []string{"firefox"}, cfg.Registry.DefaultEnabled)
	assert.Equal(t, path, cfg.File)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	setupHome(t)

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadEnvOverride(t *testing.T) {
	setupHome(t)
	t.Setenv("ACCORDION_FOCUS_POLICY", "all")
	t.Setenv("ACCORDION_SERVER_PORT", "7000")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, PolicyAll, cfg.Focus.Policy)
	assert.Equal(t, 7000, cfg.ServerPort)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ServerPort: 8080,
			Monitor:    MonitorConfig{RefreshInterval: time.Second},
			Focus:      FocusConfig{LiveWindowLimit: 100, GeometryTolerance: 5, Policy: PolicyAny},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad policy", mutate: func(c *Config) { c.Focus.Policy = "most" }, wantErr: "focus.policy"},
		{name: "zero interval", mutate: func(c *Config) { c.Monitor.RefreshInterval = 0 }, wantErr: "refresh_interval"},
		{name: "negative delay", mutate: func(c *Config) { c.Monitor.LaunchDelay = -time.Second }, wantErr: "launch_delay"},
		{name: "zero tolerance", mutate: func(c *Config) { c.Focus.GeometryTolerance = 0 }, wantErr: "geometry_tolerance"},
		{name: "zero limit", mutate: func(c *Config) { c.Focus.LiveWindowLimit = 0 }, wantErr: "live_window_limit"},
		{name: "port range", mutate: func(c *Config) { c.ServerPort = 70000 }, wantErr: "server_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
