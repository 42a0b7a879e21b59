package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "yahoo", c.Provider.Type)
	assert.Equal(t, 60, c.Analysis.WindowSize)
	assert.InDelta(t, 0.02, c.Analysis.RiskFreeRate, 1e-12)
	assert.Equal(t, 30*time.Second, c.Provider.Yahoo.Timeout)
	assert.Equal(t, -1, c.Kafka.Producer.RequiredAcks)
	assert.NoError(t, c.Validate())
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `
environment: test
analysis:
  window_size: 30
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 30, c.Analysis.WindowSize)
	assert.InDelta(t, 0.05, c.Analysis.Significance, 1e-12)
	assert.Equal(t, "local", c.Forecast.Backend)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("FINFORECAST_PROVIDER", "clickhouse")
	t.Setenv("FINFORECAST_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FINFORECAST_PORT", "9090")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", c.Provider.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestLoadWithEnvWithoutFile(t *testing.T) {
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider.Type = "bloomberg" }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"zero window", func(c *Config) { c.Analysis.WindowSize = 0 }},
		{"significance out of range", func(c *Config) { c.Analysis.Significance = 1.5 }},
		{"http backend without url", func(c *Config) { c.Forecast.Backend = "http" }},
		{"schedule without watchlist", func(c *Config) { c.Schedule.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
