package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

type memEntry struct {
	entry Entry
	seq   int
}

// MemoryStore is an in-memory Store for tests and offline development.
// It scans the whole namespace with exact cosine similarity, so results
// match what an exhaustive index would return.
type MemoryStore struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string][]memEntry
	seq        int
}

// NewMemoryStore creates an empty store expecting vectors of the given
// dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension:  dimension,
		namespaces: make(map[string][]memEntry),
	}
}

func (s *MemoryStore) EnsureIndex(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, namespace string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("entry %s has dimension %d, want %d", e.ID, len(e.Vector), s.dimension)
		}
		s.namespaces[namespace] = append(s.namespaces[namespace], memEntry{entry: e, seq: s.seq})
		s.seq++
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, namespace string, vector []float32, k int) ([]models.Passage, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(vector), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.namespaces[namespace]
	type scored struct {
		entry Entry
		score float32
		seq   int
	}
	ranked := make([]scored, 0, len(entries))
	for _, me := range entries {
		ranked = append(ranked, scored{
			entry: me.entry,
			score: cosine(vector, me.entry.Vector),
			seq:   me.seq,
		})
	}
	// Ties break by insertion order so results are deterministic.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].seq < ranked[j].seq
	})

	if k < 0 {
		k = 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	passages := make([]models.Passage, 0, k)
	for _, r := range ranked[:k] {
		passages = append(passages, models.Passage{
			Text:   r.entry.Text,
			Source: r.entry.Source,
			Score:  r.score,
		})
	}
	return passages, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, entries := range s.namespaces {
		n += int64(len(entries))
	}
	return n, nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ Store = (*MemoryStore)(nil)
