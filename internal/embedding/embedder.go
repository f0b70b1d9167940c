// Package embedding provides text embedding behind a capability interface.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// Embedder produces vector embeddings for text. The same embedder (provider,
// model, dimension) must be used for ingestion and querying; vectors from
// different models are not comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder selected by cfg.Provider. dimension is the index
// dimension every produced vector must match.
func New(cfg *config.EmbeddingConfig, dimension int, apiKey string) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.BaseURL, apiKey, cfg.Model, dimension)
		if err != nil {
			return nil, err
		}
		inner = e
	case "mock":
		inner = NewMockEmbedder(dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
