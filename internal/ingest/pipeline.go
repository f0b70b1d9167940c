// Package ingest runs the offline pipeline: load documents, split them
// into chunks, embed the chunks, and write the batches into the vector
// index.
package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/loader"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectordb"
)

// BatchError reports which batch of a run failed. Batches before Index
// are already committed, so a rerun picks up from here.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Stats summarizes one ingestion run.
type Stats struct {
	Files   int `json:"files"`
	Skipped int `json:"skipped"`
	Chunks  int `json:"chunks"`
	Batches int `json:"batches"`
	Resumed int `json:"resumed"`
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	loader     *loader.Loader
	chunker    *chunker.Chunker
	embedder   embedding.Embedder
	store      vectordb.Store
	checkpoint *Checkpoint
	namespace  string
	extensions map[string]bool
	batchSize  int
	logger     *zap.Logger
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithCheckpoint enables batch-level resume through the given ledger.
func WithCheckpoint(cp *Checkpoint) Option {
	return func(p *Pipeline) {
		p.checkpoint = cp
	}
}

// NewPipeline creates an ingestion pipeline over the given embedder and
// store.
func NewPipeline(cfg *config.IngestConfig, namespace string, embedder embedding.Embedder, store vectordb.Store, opts ...Option) *Pipeline {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	p := &Pipeline{
		loader:     loader.New(),
		chunker:    chunker.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder:   embedder,
		store:      store,
		namespace:  namespace,
		extensions: exts,
		batchSize:  cfg.BatchSize,
		logger:     zap.NewNop(),
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunDir ingests every supported file under dir.
func (p *Pipeline) RunDir(ctx context.Context, dir string) (*Stats, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p.extensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir: %w", err)
	}
	sort.Strings(paths)
	return p.Run(ctx, paths)
}

// Run ingests the given files. Unreadable files are logged and skipped so
// one bad document does not abort the corpus. A batch that fails to embed
// or index aborts the run with a BatchError; committed batches stay in
// the index and are skipped when the same run is retried.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Stats, error) {
	if err := p.store.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	stats := &Stats{}
	var chunks []models.Chunk
	for _, path := range paths {
		doc, err := p.loader.Load(path)
		if err != nil {
			p.logger.Warn("skipping unreadable document",
				zap.String("path", path),
				zap.Error(err))
			stats.Skipped++
			continue
		}
		stats.Files++
		chunks = append(chunks, p.chunker.Split(doc.Text, doc.Source)...)
	}
	stats.Chunks = len(chunks)
	if len(chunks) == 0 {
		return stats, nil
	}

	run := runID(chunks)
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := start / p.batchSize
		stats.Batches++

		if p.checkpoint != nil {
			done, err := p.checkpoint.Committed(run, batch)
			if err != nil {
				return stats, &BatchError{Index: batch, Err: err}
			}
			if done {
				stats.Resumed++
				continue
			}
		}

		if err := p.indexBatch(ctx, chunks[start:end]); err != nil {
			return stats, &BatchError{Index: batch, Err: err}
		}
		if p.checkpoint != nil {
			if err := p.checkpoint.Commit(run, batch); err != nil {
				return stats, &BatchError{Index: batch, Err: err}
			}
		}
		p.logger.Debug("indexed batch",
			zap.Int("batch", batch),
			zap.Int("chunks", end-start))
	}

	if p.checkpoint != nil {
		if err := p.checkpoint.Clear(run); err != nil {
			p.logger.Warn("failed to clear checkpoint", zap.Error(err))
		}
	}
	p.logger.Info("ingestion complete",
		zap.Int("files", stats.Files),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
		zap.Int("batches", stats.Batches))
	return stats, nil
}

func (p *Pipeline) indexBatch(ctx context.Context, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	entries := make([]vectordb.Entry, len(batch))
	for i, c := range batch {
		entries[i] = vectordb.Entry{
			ID:     c.ID,
			Vector: vectors[i],
			Text:   c.Text,
			Source: c.Source,
			Index:  c.Index,
		}
	}
	if err := p.store.Insert(ctx, p.namespace, entries); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// runID identifies a run by its chunk IDs and contents, so resuming only
// applies when the corpus split is identical to the interrupted run.
func runID(chunks []models.Chunk) string {
	h := fnv.New64a()
	for _, c := range chunks {
		_, _ = h.Write([]byte(c.ID))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(c.Text))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
