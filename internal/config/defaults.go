package config

// DefaultHistoryWindow is how many recent conversation turns are passed
// into generation when chat.history_window is unset.
const DefaultHistoryWindow = 6

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Index.Address == "" {
		cfg.Index.Address = "localhost:19530"
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = "kotae_chunks"
	}
	if cfg.Index.Namespace == "" {
		cfg.Index.Namespace = "default"
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 1536
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "cosine"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 5
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 300
	}
	if cfg.Chat.HistoryWindow == 0 {
		cfg.Chat.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Ingest.DataDir == "" {
		cfg.Ingest.DataDir = "/usr/local/var/kotae/corpus"
	}
	if len(cfg.Ingest.Extensions) == 0 {
		cfg.Ingest.Extensions = []string{".pdf", ".txt", ".md", ".docx", ".xlsx"}
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 150
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Ingest.CheckpointPath == "" {
		cfg.Ingest.CheckpointPath = "/usr/local/var/kotae/data/ingest.db"
	}
}
