package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "archive.db", cfg.Store.Path)
	assert.Equal(t, ".archive.lock", cfg.Store.LockPath)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.Delay)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Fetch.InitialBackoff)
	assert.Equal(t, 5, cfg.Fetch.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.Fetch.BreakerCooldown)
	assert.Equal(t, "https://psapi.nrk.no", cfg.NRK.BaseURL)
	assert.Equal(t, 1024, cfg.Wikidata.CacheSize)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.InDelta(t, 0.8, cfg.Anthropic.MinConfidence, 0.001)
	assert.Equal(t, []string{"radioteatret"}, cfg.Grouping.UmbrellaSeries)
	assert.InDelta(t, 0.7, cfg.Matching.Threshold, 0.001)
	assert.InDelta(t, 0.8, cfg.Matching.ContainmentFloor, 0.001)
	assert.InDelta(t, 0.2, cfg.Matching.ContextBoost, 0.001)
	assert.False(t, cfg.Orphans.AutoDelete)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: yaml
  path: ./data
log:
  level: debug
  format: json
fetch:
  delay: 2s
grouping:
  umbrella_series: [radioteatret, lordagsteatret]
orphans:
  auto_delete: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "yaml", cfg.Store.Driver)
	assert.Equal(t, "./data", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2*time.Second, cfg.Fetch.Delay)
	assert.Equal(t, []string{"radioteatret", "lordagsteatret"}, cfg.Grouping.UmbrellaSeries)
	assert.True(t, cfg.Orphans.AutoDelete)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ARCHIVE_STORE_DRIVER", "postgres")
	t.Setenv("ARCHIVE_LOG_LEVEL", "warn")
	t.Setenv("ARCHIVE_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "archive.db"
	cfg.Anthropic.MinConfidence = 0.8
	cfg.Matching.Threshold = 0.7
	cfg.Matching.ContainmentFloor = 0.8
	cfg.Fetch.MaxAttempts = 3
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "postgres needs url", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "store.database_url is required"},
		{name: "postgres with url", mutate: func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.DatabaseURL = "postgres://localhost/archive"
		}},
		{name: "yaml needs path", mutate: func(c *Config) {
			c.Store.Driver = "yaml"
			c.Store.Path = ""
		}, wantErr: "store.path is required for yaml"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: `unknown store.driver "mongo"`},
		{name: "confidence range", mutate: func(c *Config) { c.Anthropic.MinConfidence = 1.5 }, wantErr: "min_confidence"},
		{name: "threshold range", mutate: func(c *Config) { c.Matching.Threshold = 0 }, wantErr: "matching.threshold"},
		{name: "attempts", mutate: func(c *Config) { c.Fetch.MaxAttempts = 0 }, wantErr: "fetch.max_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
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

func TestValidate_ReportsAll(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Matching.Threshold = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
	assert.Contains(t, err.Error(), "matching.threshold")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
