package database

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"github.com/tieubaoca/tables-retriever/config"
)

const (
	milvusIDField      = "node_id"
	milvusKindField    = "kind"
	milvusContentField = "content"
	milvusVectorField  = "embedding"

	milvusMaxIDLen      = 256
	milvusMaxKindLen    = 16
	milvusMaxContentLen = 65535
)

// MilvusStore keeps node vectors in a Milvus collection. The collection is
// created on the first Add, once the embedding dimension is known.
type MilvusStore struct {
	client     *milvusclient.Client
	collection string

	mu    sync.Mutex
	ready bool
}

func NewMilvusStore(ctx context.Context, cfg config.MilvusConfig) (*MilvusStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "table_nodes"
	}
	return &MilvusStore{
		client:     c,
		collection: collection,
	}, nil
}

func (s *MilvusStore) Name() string {
	return StoreMilvus
}

func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *MilvusStore) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		schema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("embedded document nodes").
			WithField(entity.NewField().
				WithName(milvusIDField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(milvusMaxIDLen).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(milvusKindField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(milvusMaxKindLen)).
			WithField(entity.NewField().
				WithName(milvusContentField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(milvusMaxContentLen)).
			WithField(entity.NewField().
				WithName(milvusVectorField).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dim)))

		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewIvfFlatIndex(entity.COSINE, 128)
		createIdxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, milvusVectorField, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := createIdxTask.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
		logger.Infow("created milvus collection", "collection", s.collection, "dim", dim)
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	s.ready = true
	return nil
}

func (s *MilvusStore) Add(ctx context.Context, records []StoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}

	ids := make([]string, len(records))
	kinds := make([]string, len(records))
	contents := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("record %s has dimension %d, want %d", r.ID, len(r.Vector), dim)
		}
		ids[i] = r.ID
		kinds[i] = r.Kind
		contents[i] = truncateBytes(r.Text, milvusMaxContentLen)
		vectors[i] = r.Vector
	}

	_, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection,
		column.NewColumnVarChar(milvusIDField, ids),
		column.NewColumnVarChar(milvusKindField, kinds),
		column.NewColumnVarChar(milvusContentField, contents),
		column.NewColumnFloatVector(milvusVectorField, dim, vectors),
	))
	if err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
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

func (s *MilvusStore) Query(ctx context.Context, vector []float32, topK int) ([]StoreMatch, error) {
	if err := s.ensureCollection(ctx, len(vector)); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 1
	}

	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(milvusVectorField).
		WithSearchParam("nprobe", "16").
		WithOutputFields(milvusIDField))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []StoreMatch{}, nil
	}

	rs := results[0]
	matches := make([]StoreMatch, 0, rs.ResultCount)
	idCol, _ := rs.IDs.(*column.ColumnVarChar)
	for i := 0; i < rs.ResultCount; i++ {
		match := StoreMatch{Score: float64(rs.Scores[i])}
		if idCol != nil {
			match.ID = idCol.Data()[i]
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Clear drops the collection. It is recreated by the next Add.
func (s *MilvusStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(s.collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	s.ready = false
	return nil
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
