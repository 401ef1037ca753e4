package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8480, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, "heuristic", cfg.Classifier.Provider)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "rules", cfg.Synthesis.Provider)
	assert.False(t, cfg.Cache.FailOnStorageError)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9000
cache:
  provider: postgres
  postgres:
    url: postgres://veridex:pw@localhost:5432/veridex
classifier:
  provider: http
  base_url: http://localhost:8501
retrieval:
  top_k: 3
synthesis:
  provider: llm
  base_url: http://localhost:11434/v1
  model: llama3
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Cache.Provider)
	assert.Equal(t, "postgres://veridex:pw@localhost:5432/veridex", cfg.Cache.Postgres.URL.Value())
	assert.Equal(t, "http", cfg.Classifier.Provider)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "llama3", cfg.Synthesis.Model)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0600))

	t.Setenv("SERVER_PORT", "9100")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"SERVER_SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"RETRIEVAL_TOP_K", "retrieval.top_k"},
		{"CACHE_PROVIDER", "cache.provider"},
		{"HOME", "home"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envTransform(tt.in), tt.in)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
		{"postgres without url", func(c *Config) { c.Cache.Provider = "postgres" }, "cache.postgres.url required"},
		{"unknown cache provider", func(c *Config) { c.Cache.Provider = "redis" }, "unsupported cache provider"},
		{"http classifier without url", func(c *Config) { c.Classifier.Provider = "http" }, "classifier.base_url required"},
		{"unknown store provider", func(c *Config) { c.VectorStore.Provider = "pinecone" }, "unsupported vectorstore provider"},
		{"llm without url", func(c *Config) { c.Synthesis.Provider = "llm" }, "synthesis.base_url required"},
		{"bad temperature", func(c *Config) { c.Synthesis.Temperature = 3.5 }, "synthesis.temperature"},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry endpoint required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret-token")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "super-secret-token", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	empty := Secret("")
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("150ms")))
	assert.Equal(t, 150*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))

	text, err := Duration(2 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2s", string(text))
}
