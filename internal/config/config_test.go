package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.False(t, cfg.CacheEnabled)
	assert.False(t, cfg.EventsEnabled)
	assert.False(t, cfg.ProbabilisticEnabled)
	assert.NotEmpty(t, cfg.Query.Version(), "validation freezes the query config version")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown mode", func(c *Config) { c.Server.Mode = "verbose" }},
		{"missing query section", func(c *Config) { c.Query = nil }},
		{"missing rank section", func(c *Config) { c.Rank = nil }},
		{"cache enabled without addr", func(c *Config) { c.CacheEnabled = true; c.Redis.Addr = "" }},
		{"events enabled without brokers", func(c *Config) { c.EventsEnabled = true; c.Kafka.Brokers = nil }},
		{"probabilistic enabled without url", func(c *Config) { c.ProbabilisticEnabled = true; c.LLM.BaseURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestApplyDefaultsFillsOnlyZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999

	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port, "explicit settings win")
	assert.Equal(t, "release", cfg.Server.Mode)
	require.NotNil(t, cfg.Query)
	require.NotNil(t, cfg.Rank)
	require.NotNil(t, cfg.Redis)
	require.NotNil(t, cfg.Kafka)
	require.NotNil(t, cfg.LLM)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  mode: debug
log:
  level: debug
  format: console
cache_enabled: true
redis:
  addr: "localhost:6379"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	// Unset sections fall back to defaults.
	assert.NotNil(t, cfg.Rank)
	assert.NotEmpty(t, cfg.Query.Version())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestLoadInvalidContentRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  mode: loud
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CPMS_SERVER_PORT", "7070")
	t.Setenv("CPMS_SERVER_MODE", "test")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Mode)
}
