package vectordb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

const (
	vectorField    = "embedding"
	maxContentLen  = 65535
	maxMetadataLen = 512
)

// MilvusStore keeps chunk embeddings in a Milvus collection. Entries carry
// a namespace metadata field and queries filter on it, so one collection
// serves multiple corpora.
type MilvusStore struct {
	client     *milvusclient.Client
	collection string
	dimension  int
	logger     *zap.Logger
}

// NewMilvusStore connects to Milvus at the configured address.
func NewMilvusStore(ctx context.Context, cfg *config.IndexConfig, logger *zap.Logger) (*MilvusStore, error) {
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address: cfg.Address,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return &MilvusStore{
		client:     c,
		collection: cfg.Name,
		dimension:  cfg.Dimension,
		logger:     logger,
	}, nil
}

// EnsureIndex creates the collection, vector index, and load state if the
// collection does not exist yet. An existing collection with a different
// vector dimension is a configuration error, not something to repair.
func (s *MilvusStore) EnsureIndex(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.checkDimension(ctx); err != nil {
			return err
		}
		return s.load(ctx)
	}

	schema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("document chunks with embeddings").
		WithAutoID(true)
	schema.WithField(
		entity.NewField().
			WithName("id").
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true),
	)
	schema.WithField(
		entity.NewField().
			WithName(vectorField).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(s.dimension)),
	)
	for _, name := range []string{"chunk_id", "source", "namespace"} {
		schema.WithField(
			entity.NewField().
				WithName(name).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxMetadataLen),
		)
	}
	schema.WithField(
		entity.NewField().
			WithName("content").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxContentLen),
	)
	schema.WithField(
		entity.NewField().
			WithName("chunk_index").
			WithDataType(entity.FieldTypeInt64),
	)

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, vectorField, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	s.logger.Info("created collection",
		zap.String("collection", s.collection),
		zap.Int("dimension", s.dimension))

	return s.load(ctx)
}

func (s *MilvusStore) checkDimension(ctx context.Context) error {
	coll, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to describe collection: %w", err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != vectorField {
			continue
		}
		dimStr, ok := f.TypeParams["dim"]
		if !ok {
			return nil
		}
		dim, err := strconv.Atoi(dimStr)
		if err != nil {
			return fmt.Errorf("failed to parse collection dimension %q: %w", dimStr, err)
		}
		if dim != s.dimension {
			return fmt.Errorf("collection %s has dimension %d, configured %d", s.collection, dim, s.dimension)
		}
	}
	return nil
}

func (s *MilvusStore) load(ctx context.Context) error {
	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Insert writes the entries under the given namespace and flushes so the
// data is searchable immediately after ingestion.
func (s *MilvusStore) Insert(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	vectors := make([][]float32, len(entries))
	chunkIDs := make([]string, len(entries))
	sources := make([]string, len(entries))
	namespaces := make([]string, len(entries))
	contents := make([]string, len(entries))
	indexes := make([]int64, len(entries))
	for i, e := range entries {
		vectors[i] = e.Vector
		chunkIDs[i] = e.ID
		sources[i] = e.Source
		namespaces[i] = namespace
		contents[i] = e.Text
		indexes[i] = int64(e.Index)
	}

	_, err := s.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection,
		column.NewColumnFloatVector(vectorField, s.dimension, vectors),
		column.NewColumnVarChar("chunk_id", chunkIDs),
		column.NewColumnVarChar("source", sources),
		column.NewColumnVarChar("namespace", namespaces),
		column.NewColumnVarChar("content", contents),
		column.NewColumnInt64("chunk_index", indexes),
	))
	if err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}

	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// Query returns the k nearest chunks in the namespace, best match first.
func (s *MilvusStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.Passage, error) {
	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		k,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(vectorField).
		WithSearchParam("nprobe", "16").
		WithFilter(fmt.Sprintf("namespace == %q", namespace)).
		WithOutputFields("content", "source"))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	passages := make([]models.Passage, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		p := models.Passage{Score: results[0].Scores[i]}
		for _, field := range results[0].Fields {
			if col, ok := field.(*column.ColumnVarChar); ok {
				switch col.Name() {
				case "content":
					p.Text = col.Data()[i]
				case "source":
					p.Source = col.Data()[i]
				}
			}
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// Count returns the number of entries in the collection.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(s.collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ Store = (*MilvusStore)(nil)
