package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/types"
)

var ErrReferenceNotFound = errors.New("reference not found")

// QueryEngine answers a query.
type QueryEngine interface {
	Query(ctx context.Context, query string) (*types.Response, error)
}

type RecursiveRetrieverOption func(*RecursiveRetriever)

func WithNodeDict(nodes map[string]*types.Node) RecursiveRetrieverOption {
	return func(r *RecursiveRetriever) {
		r.nodeDict = nodes
	}
}

func WithQueryEngineDict(engines map[string]QueryEngine) RecursiveRetrieverOption {
	return func(r *RecursiveRetriever) {
		r.queryEngineDict = engines
	}
}

func WithRetrieverVerbose(verbose bool) RecursiveRetrieverOption {
	return func(r *RecursiveRetriever) {
		r.verbose = verbose
	}
}

// RecursiveRetriever retrieves from a root retriever and follows index node
// references into nodes, other retrievers or query engines.
type RecursiveRetriever struct {
	rootID          string
	retrieverDict   map[string]Retriever
	nodeDict        map[string]*types.Node
	queryEngineDict map[string]QueryEngine
	verbose         bool
}

func NewRecursiveRetriever(rootID string, retrieverDict map[string]Retriever, opts ...RecursiveRetrieverOption) *RecursiveRetriever {
	r := &RecursiveRetriever{
		rootID:          rootID,
		retrieverDict:   retrieverDict,
		nodeDict:        map[string]*types.Node{},
		queryEngineDict: map[string]QueryEngine{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RecursiveRetriever) Retrieve(ctx context.Context, query string) ([]types.NodeWithScore, error) {
	results, err := r.retrieveRec(ctx, query, r.rootID, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return dedupeNodes(results), nil
}

func (r *RecursiveRetriever) retrieveRec(ctx context.Context, query, id string, visited map[string]bool) ([]types.NodeWithScore, error) {
	retriever, ok := r.retrieverDict[id]
	if !ok {
		return nil, fmt.Errorf("%w: retriever %s", ErrReferenceNotFound, id)
	}
	visited[id] = true
	r.log("Retrieving with query id", "id", id, "query", query)

	nodes, err := retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever %s: %w", id, err)
	}

	var out []types.NodeWithScore
	for _, nws := range nodes {
		resolved, err := r.resolve(ctx, query, nws, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved...)
	}
	return out, nil
}

// resolve follows nws while it is an index node. The substituted node
// inherits the score of the index node that pointed at it.
func (r *RecursiveRetriever) resolve(ctx context.Context, query string, nws types.NodeWithScore, visited map[string]bool) ([]types.NodeWithScore, error) {
	for nws.Node != nil && nws.Node.IsIndex() {
		ref := nws.Node.IndexID
		if visited[ref] {
			logger.Warnw("skipping cyclic reference", "node_id", nws.Node.ID, "index_id", ref)
			return nil, nil
		}

		if target, ok := r.nodeDict[ref]; ok {
			r.log("Retrieved node with id, entering", "id", ref)
			visited[ref] = true
			nws = types.NodeWithScore{Node: target, Score: nws.Score}
			continue
		}
		if _, ok := r.retrieverDict[ref]; ok {
			r.log("Retrieved node with id, entering", "id", ref)
			return r.retrieveRec(ctx, query, ref, visited)
		}
		if engine, ok := r.queryEngineDict[ref]; ok {
			r.log("Retrieved node with id, entering", "id", ref)
			visited[ref] = true
			res, err := engine.Query(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("query engine %s: %w", ref, err)
			}
			return []types.NodeWithScore{{
				Node: &types.Node{
					ID:   ref,
					Kind: types.NodeKindText,
					Text: res.Response,
				},
				Score: nws.Score,
			}}, nil
		}
		return nil, fmt.Errorf("%w: %s referenced by %s", ErrReferenceNotFound, ref, nws.Node.ID)
	}
	if nws.Node == nil {
		return nil, nil
	}
	r.log("Retrieving text node", "id", nws.Node.ID)
	return []types.NodeWithScore{nws}, nil
}

func (r *RecursiveRetriever) log(msg string, keysAndValues ...interface{}) {
	if r.verbose {
		logger.Infow(msg, keysAndValues...)
	}
}

func dedupeNodes(nodes []types.NodeWithScore) []types.NodeWithScore {
	seen := make(map[string]bool, len(nodes))
	out := make([]types.NodeWithScore, 0, len(nodes))
	for _, nws := range nodes {
		if seen[nws.Node.ID] {
			continue
		}
		seen[nws.Node.ID] = true
		out = append(out, nws)
	}
	return out
}
