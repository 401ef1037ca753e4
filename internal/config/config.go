// Package config provides configuration loading for veridexd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Every section ships with defaults that work for an embedded,
// single-process deployment (in-memory cache, chromem vector store, rule
// based synthesis); external services are opt-in.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete veridexd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Identity    IdentityConfig    `koanf:"identity"`
	Cache       CacheConfig       `koanf:"cache"`
	Classifier  ClassifierConfig  `koanf:"classifier"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Synthesis   SynthesisConfig   `koanf:"synthesis"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	Protocol       string `koanf:"protocol"` // "grpc" (default) or "http/protobuf"
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	Insecure       bool   `koanf:"insecure"`
}

// IdentityConfig controls which post fields participate in cache identity.
//
// Text, image description, and social network are always identity-bearing.
// MetadataKeys lists metadata fields that should additionally be mixed into
// the content key; it is empty by default so that engagement counters
// (likes, upvotes) never split otherwise-identical posts into separate
// cache entries.
type IdentityConfig struct {
	MetadataKeys []string `koanf:"metadata_keys"`
}

// CacheConfig holds analysis cache configuration.
type CacheConfig struct {
	// Provider selects the cache backend: "memory" (default) or "postgres".
	Provider string `koanf:"provider"`

	// Postgres holds settings for the postgres provider.
	Postgres PostgresConfig `koanf:"postgres"`

	// FailOnStorageError controls how storage failures are handled.
	// When false (default), a failed cache write still returns the
	// computed result to the caller, flagged as not persisted. When true
	// the request fails.
	FailOnStorageError bool `koanf:"fail_on_storage_error"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	URL            Secret   `koanf:"url"`
	MaxConns       int32    `koanf:"max_conns"`
	ConnectTimeout Duration `koanf:"connect_timeout"`
}

// ClassifierConfig holds text classifier settings.
type ClassifierConfig struct {
	// Provider selects the classifier: "http" (remote scoring service)
	// or "heuristic" (embedded, for development and tests).
	Provider string   `koanf:"provider"`
	BaseURL  string   `koanf:"base_url"`
	Model    string   `koanf:"model"`
	Timeout  Duration `koanf:"timeout"`

	// RequestsPerSecond caps calls to the scoring service. Zero disables
	// the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// EmbeddingsConfig holds embedding service settings.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig holds trusted-source index settings.
type VectorStoreConfig struct {
	// Provider selects the store backend: "chromem" (embedded, default)
	// or "qdrant" (external server).
	Provider string        `koanf:"provider"`
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds settings for the embedded chromem store.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
}

// QdrantConfig holds settings for the external Qdrant store.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"` // gRPC port (6334), not HTTP (6333)
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
	UseTLS     bool   `koanf:"use_tls"`
}

// RetrievalConfig holds trusted-source retrieval settings.
type RetrievalConfig struct {
	TopK    int      `koanf:"top_k"`
	Timeout Duration `koanf:"timeout"`

	// CorpusDir is an optional directory of trusted-source documents to
	// ingest at startup. When Watch is true new files are ingested as
	// they appear.
	CorpusDir string `koanf:"corpus_dir"`
	Watch     bool   `koanf:"watch"`
}

// SynthesisConfig holds verdict synthesis settings.
type SynthesisConfig struct {
	// Provider selects the synthesizer: "llm" or "rules" (default when no
	// LLM endpoint is configured).
	Provider    string   `koanf:"provider"`
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Timeout     Duration `koanf:"timeout"`
	Temperature float64  `koanf:"temperature"`

	// RequestsPerSecond caps calls to the LLM. Zero disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8480
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "veridexd"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}

	if cfg.Cache.Provider == "" {
		cfg.Cache.Provider = "memory"
	}
	if cfg.Cache.Postgres.MaxConns == 0 {
		cfg.Cache.Postgres.MaxConns = 5
	}
	if cfg.Cache.Postgres.ConnectTimeout == 0 {
		cfg.Cache.Postgres.ConnectTimeout = Duration(5 * time.Second)
	}

	if cfg.Classifier.Provider == "" {
		if cfg.Classifier.BaseURL != "" {
			cfg.Classifier.Provider = "http"
		} else {
			cfg.Classifier.Provider = "heuristic"
		}
	}
	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = "veridex-bert-base"
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = Duration(10 * time.Second)
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/veridexd/vectorstore"
	}
	if cfg.VectorStore.Chromem.Collection == "" {
		cfg.VectorStore.Chromem.Collection = "trusted_sources"
	}
	if cfg.VectorStore.Chromem.VectorSize == 0 {
		cfg.VectorStore.Chromem.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "trusted_sources"
	}
	if cfg.VectorStore.Qdrant.VectorSize == 0 {
		cfg.VectorStore.Qdrant.VectorSize = 384
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = Duration(10 * time.Second)
	}

	if cfg.Synthesis.Provider == "" {
		if cfg.Synthesis.BaseURL != "" {
			cfg.Synthesis.Provider = "llm"
		} else {
			cfg.Synthesis.Provider = "rules"
		}
	}
	if cfg.Synthesis.Model == "" {
		cfg.Synthesis.Model = "gpt-4o-mini"
	}
	if cfg.Synthesis.Timeout == 0 {
		cfg.Synthesis.Timeout = Duration(30 * time.Second)
	}
	if cfg.Synthesis.Temperature == 0 {
		cfg.Synthesis.Temperature = 0.3
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
	}

	switch c.Cache.Provider {
	case "memory":
	case "postgres":
		if !c.Cache.Postgres.URL.IsSet() {
			return errors.New("cache.postgres.url required for postgres cache provider")
		}
	default:
		return fmt.Errorf("unsupported cache provider: %s (supported: memory, postgres)", c.Cache.Provider)
	}

	switch c.Classifier.Provider {
	case "heuristic":
	case "http":
		if c.Classifier.BaseURL == "" {
			return errors.New("classifier.base_url required for http classifier provider")
		}
	default:
		return fmt.Errorf("unsupported classifier provider: %s (supported: http, heuristic)", c.Classifier.Provider)
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", c.VectorStore.Provider)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}

	switch c.Synthesis.Provider {
	case "rules":
	case "llm":
		if c.Synthesis.BaseURL == "" {
			return errors.New("synthesis.base_url required for llm synthesis provider")
		}
	default:
		return fmt.Errorf("unsupported synthesis provider: %s (supported: llm, rules)", c.Synthesis.Provider)
	}
	if c.Synthesis.Temperature < 0 || c.Synthesis.Temperature > 2 {
		return fmt.Errorf("synthesis.temperature must be in [0,2], got %f", c.Synthesis.Temperature)
	}

	return nil
}
