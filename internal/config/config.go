// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// IndexConfig holds vector index settings. Name is the collection, Namespace
// partitions entries within it. Dimension must match the embedder; a mismatch
// against an existing collection is fatal at startup, not per request.
type IndexConfig struct {
	Address   string `yaml:"address"`
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
	Dimension int    `yaml:"dimension"`
	Metric    string `yaml:"metric"`
}

// EmbeddingConfig holds embedder settings. Provider selects the backend:
// "openai" (OpenAI-compatible HTTP API) or "mock" (deterministic, for tests
// and offline development). The same provider and model must be used for
// ingestion and query so vectors stay comparable.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

// ChatConfig holds generation and orchestration settings.
type ChatConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	TopK        int     `yaml:"top_k"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	// HistoryWindow is how many recent turns are passed into generation.
	// 0 means the built-in default; -1 disables history.
	HistoryWindow int `yaml:"history_window"`
	// FallbackPhrases override the confidence gate's phrase set when non-empty.
	FallbackPhrases []string `yaml:"fallback_phrases"`
	// Disclosure overrides the canned low-confidence message when non-empty.
	Disclosure string `yaml:"disclosure"`
}

// IngestConfig holds corpus loading and chunking settings.
type IngestConfig struct {
	DataDir        string   `yaml:"data_dir"`
	Extensions     []string `yaml:"extensions"`
	ChunkSize      int      `yaml:"chunk_size"`
	ChunkOverlap   int      `yaml:"chunk_overlap"`
	BatchSize      int      `yaml:"batch_size"`
	CheckpointPath string   `yaml:"checkpoint_path"`
}

// WatchConfig holds corpus directory watch settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Credentials holds secrets read from the environment (never from YAML).
type Credentials struct {
	OpenAIKey string
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Ingest.DataDir = expandPath(cfg.Ingest.DataDir, configDir)
	cfg.Ingest.CheckpointPath = expandPath(cfg.Ingest.CheckpointPath, configDir)

	return &cfg, nil
}

// LoadCredentials reads secrets from the environment. A .env file in the
// working directory is loaded first when present (development convenience);
// real environment variables win over .env entries.
func LoadCredentials() Credentials {
	_ = godotenv.Load()
	return Credentials{
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

// Validate checks for fatal configuration errors. These must prevent the
// system from serving queries; they are never retried.
func Validate(cfg *Config, creds Credentials) error {
	if cfg.Index.Dimension <= 0 {
		return fmt.Errorf("index.dimension must be positive, got %d", cfg.Index.Dimension)
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)",
			cfg.Ingest.ChunkOverlap, cfg.Ingest.ChunkSize)
	}
	if cfg.Index.Metric != "cosine" {
		return fmt.Errorf("index.metric %q not supported (only cosine)", cfg.Index.Metric)
	}
	if cfg.Embedding.Provider == "openai" && creds.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when embedding.provider is openai")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
