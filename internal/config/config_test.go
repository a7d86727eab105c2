package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Generation.Model)
	assert.Equal(t, 4096, cfg.Generation.MaxTokens)
	assert.Equal(t, 2, cfg.Generation.MaxRetries)
	assert.Equal(t, 500, cfg.Storage.PurgeBatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Storage.CheckpointInterval)
	assert.Equal(t, filepath.Join(cfg.Storage.DataDir, "forms.db"), cfg.Storage.FormsDB)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("AI_MODEL", "claude-test")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "claude-test", cfg.Generation.Model)
	assert.Equal(t, 5*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_AnthropicKeyFallback(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("AI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-fallback")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Generation.APIKey)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	path := filepath.Join(dir, "formai.json")
	content := `{
		"server": {"http_addr": ":9999"},
		"storage": {"purge_batch_size": 50},
		"generation": {"max_tokens": 2048, "timeout": "30s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
	assert.Equal(t, 50, cfg.Storage.PurgeBatchSize)
	assert.Equal(t, 2048, cfg.Generation.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Generation.Timeout)
	// untouched keys keep their defaults
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		t.Setenv("DATA_DIR", t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"invalid exporter", func(c *Config) { c.Metrics.TracingExporter = "zipkin" }},
		{"tracing without endpoint", func(c *Config) { c.Metrics.TracingEnabled = true }},
		{"max tokens too small", func(c *Config) { c.Generation.MaxTokens = 10 }},
		{"purge batch zero", func(c *Config) { c.Storage.PurgeBatchSize = 0 }},
		{"sample ratio above one", func(c *Config) { c.Metrics.TracingSampleRatio = 2 }},
		{"grpc enabled without addr", func(c *Config) { c.Server.GRPCAddr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
