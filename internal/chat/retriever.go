package chat

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectordb"
)

// Retriever embeds a question and finds the nearest chunks in the index.
type Retriever struct {
	embedder  embedding.Embedder
	store     vectordb.Store
	namespace string
	topK      int
}

// NewRetriever creates a retriever over the given embedder and store.
// The embedder must be the same model used at ingestion time.
func NewRetriever(embedder embedding.Embedder, store vectordb.Store, namespace string, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		namespace: namespace,
		topK:      topK,
	}
}

// Retrieve returns up to topK passages nearest to the question, best
// match first. An empty index yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.Passage, error) {
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	passages, err := r.store.Query(ctx, r.namespace, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return passages, nil
}
