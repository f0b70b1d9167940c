package vectordb

import (
	"context"
	"testing"
)

func TestMemoryStore_QueryRanksByCosine(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	entries := []Entry{
		{ID: "a:0", Vector: []float32{1, 0, 0}, Text: "east", Source: "a"},
		{ID: "a:1", Vector: []float32{0, 1, 0}, Text: "north", Source: "a"},
		{ID: "a:2", Vector: []float32{0.9, 0.1, 0}, Text: "mostly east", Source: "a"},
	}
	if err := s.Insert(ctx, "default", entries); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(ctx, "default", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d passages, want 2", len(got))
	}
	if got[0].Text != "east" || got[1].Text != "mostly east" {
		t.Errorf("ranking wrong: %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %f, %f", got[0].Score, got[1].Score)
	}
}

func TestMemoryStore_KLargerThanIndex(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	if err := s.Insert(ctx, "default", []Entry{{ID: "a:0", Vector: []float32{1, 0}, Text: "only"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "default", []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %d passages, want 1", len(got))
	}
}

func TestMemoryStore_ScoreCarriesSimilarity(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	if err := s.Insert(ctx, "default", []Entry{{ID: "a:0", Vector: []float32{3, 4}, Text: "same direction"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "default", []float32{6, 8}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d passages, want 1", len(got))
	}
	var score float32 = got[0].Score
	if score < 0.999 || score > 1.001 {
		t.Errorf("score = %f, want 1 for parallel vectors", score)
	}
}

func TestMemoryStore_NegativeK(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	if err := s.Insert(ctx, "default", []Entry{{ID: "a:0", Vector: []float32{1, 0}, Text: "only"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "default", []float32{1, 0}, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d passages for negative k, want 0", len(got))
	}
}

func TestMemoryStore_EmptyIndex(t *testing.T) {
	s := NewMemoryStore(2)
	got, err := s.Query(context.Background(), "default", []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d passages from empty index", len(got))
	}
}

func TestMemoryStore_NamespaceIsolation(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	if err := s.Insert(ctx, "alpha", []Entry{{ID: "a:0", Vector: []float32{1, 0}, Text: "in alpha"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, "beta", []Entry{{ID: "b:0", Vector: []float32{1, 0}, Text: "in beta"}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(ctx, "alpha", []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "in alpha" {
		t.Errorf("namespace leak: %+v", got)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestMemoryStore_TiesBreakByInsertionOrder(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	entries := []Entry{
		{ID: "a:0", Vector: []float32{1, 0}, Text: "first"},
		{ID: "a:1", Vector: []float32{1, 0}, Text: "second"},
	}
	if err := s.Insert(ctx, "default", entries); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "default", []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Text != "first" || got[1].Text != "second" {
		t.Errorf("tie order wrong: %q, %q", got[0].Text, got[1].Text)
	}
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	if err := s.Insert(ctx, "default", []Entry{{ID: "a:0", Vector: []float32{1, 0}}}); err == nil {
		t.Error("expected insert dimension error")
	}
	if _, err := s.Query(ctx, "default", []float32{1, 0}, 1); err == nil {
		t.Error("expected query dimension error")
	}
}
