package service

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/database"
	"github.com/tieubaoca/tables-retriever/types"
)

const (
	defaultEmbedBatchSize = 10
	maxWidenRounds        = 8
)

// Retriever returns the nodes most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]types.NodeWithScore, error)
}

type VectorIndexOptions struct {
	EmbedBatchSize int
}

// VectorIndex embeds nodes into a vector store and keeps the nodes
// themselves in memory so that matches resolve back to full nodes.
type VectorIndex struct {
	embedder EmbeddingProvider
	store    database.VectorStore
	docstore map[string]*types.Node
}

func NewVectorIndex(ctx context.Context, nodes []*types.Node, embedder EmbeddingProvider, store database.VectorStore, opts VectorIndexOptions) (*VectorIndex, error) {
	batchSize := opts.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	idx := &VectorIndex{
		embedder: embedder,
		store:    store,
		docstore: make(map[string]*types.Node, len(nodes)),
	}

	for start := 0; start < len(nodes); start += batchSize {
		batch := nodes[start:min(start+batchSize, len(nodes))]
		texts := make([]string, len(batch))
		for i, node := range batch {
			texts[i] = node.Text
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed nodes %d-%d: %w", start, start+len(batch), err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingMismatch, len(vectors), len(batch))
		}

		records := make([]database.StoreRecord, len(batch))
		for i, node := range batch {
			records[i] = database.StoreRecord{
				ID:     node.ID,
				Kind:   string(node.Kind),
				Text:   node.Text,
				Vector: vectors[i],
			}
			idx.docstore[node.ID] = node
		}
		if err := store.Add(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to add nodes to %s store: %w", store.Name(), err)
		}
	}

	logger.Infow("built vector index", "nodes", len(nodes), "store", store.Name(), "embedder", embedder.Name())
	return idx, nil
}

// Node returns a node held by the index.
func (idx *VectorIndex) Node(id string) (*types.Node, bool) {
	node, ok := idx.docstore[id]
	return node, ok
}

// Len returns the number of indexed nodes.
func (idx *VectorIndex) Len() int {
	return len(idx.docstore)
}

func (idx *VectorIndex) AsRetriever(topK int) *VectorRetriever {
	if topK <= 0 {
		topK = 1
	}
	return &VectorRetriever{
		index: idx,
		topK:  topK,
	}
}

// VectorRetriever runs similarity search against a VectorIndex.
type VectorRetriever struct {
	index *VectorIndex
	topK  int
}

func (r *VectorRetriever) TopK() int {
	return r.topK
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]types.NodeWithScore, error) {
	if len(r.index.docstore) == 0 {
		return nil, nil
	}
	vector, err := r.index.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Persistent stores may still hold nodes from earlier runs. Widen the
	// search until topK of our own nodes are found or the store runs dry.
	fetch := r.topK
	for round := 0; ; round++ {
		matches, err := r.index.store.Query(ctx, vector, fetch)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s store: %w", r.index.store.Name(), err)
		}

		results := make([]types.NodeWithScore, 0, r.topK)
		skipped := 0
		for _, m := range matches {
			node, ok := r.index.docstore[m.ID]
			if !ok {
				skipped++
				continue
			}
			results = append(results, types.NodeWithScore{Node: node, Score: m.Score})
			if len(results) == r.topK {
				break
			}
		}
		if len(results) == r.topK || len(matches) < fetch || round == maxWidenRounds {
			if skipped > 0 {
				logger.Debugw("skipped matches outside docstore", "skipped", skipped, "fetched", fetch)
			}
			return results, nil
		}
		fetch *= 2
	}
}
