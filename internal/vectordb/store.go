// Package vectordb stores chunk embeddings and serves nearest-neighbor
// queries over them.
package vectordb

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// Entry is one chunk ready for indexing.
type Entry struct {
	ID     string
	Vector []float32
	Text   string
	Source string
	Index  int
}

// Store is the vector index abstraction. Namespaces partition entries so
// separate corpora can share one collection.
type Store interface {
	// EnsureIndex creates the collection and vector index if missing and
	// verifies the existing one matches the configured dimension.
	EnsureIndex(ctx context.Context) error
	Insert(ctx context.Context, namespace string, entries []Entry) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.Passage, error)
	Count(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}

// New connects to the configured vector index backend.
func New(ctx context.Context, cfg *config.IndexConfig, logger *zap.Logger) (Store, error) {
	return NewMilvusStore(ctx, cfg, logger)
}
