package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tieubaoca/tables-retriever/config"
)

const (
	StoreMemory   = "memory"
	StoreWeaviate = "weaviate"
	StoreMilvus   = "milvus"
)

var ErrUnknownStore = errors.New("unknown vector store")

// StoreRecord is one embedded node handed to a vector store.
type StoreRecord struct {
	ID     string
	Kind   string
	Text   string
	Vector []float32
}

// StoreMatch is a similarity hit. Higher scores are closer.
type StoreMatch struct {
	ID    string
	Score float64
}

// VectorStore defines the operations the vector index needs.
type VectorStore interface {
	Add(ctx context.Context, records []StoreRecord) error
	// Query returns at most topK matches ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int) ([]StoreMatch, error)
	Clear(ctx context.Context) error
	Name() string
}

// NewVectorStore builds the store selected by cfg.Type.
func NewVectorStore(ctx context.Context, cfg config.VectorStoreConfig) (VectorStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", StoreMemory:
		return NewMemoryStore(), nil
	case StoreWeaviate:
		return NewWeaviateStore(ctx, cfg.Weaviate)
	case StoreMilvus:
		return NewMilvusStore(ctx, cfg.Milvus)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, cfg.Type)
	}
}
