package cmd

import (
	"context"
	"fmt"

	"github.com/tieubaoca/tables-retriever/config"
	"github.com/tieubaoca/tables-retriever/database"
	"github.com/tieubaoca/tables-retriever/pack"
	"github.com/tieubaoca/tables-retriever/service"
	"github.com/tieubaoca/tables-retriever/types"
)

// buildPack creates the provider and vector store from cfg and builds the
// pack over file.
func buildPack(ctx context.Context, cfg *config.Config, file string) (*pack.Pack, error) {
	if file == "" {
		return nil, fmt.Errorf("--file is required")
	}
	provider, err := service.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	store, err := database.NewVectorStore(ctx, cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	return buildPackWithStore(ctx, cfg, file, provider, store)
}

// buildPackWithStore clears store before indexing file, so persistent
// stores never serve nodes from an earlier run.
func buildPackWithStore(ctx context.Context, cfg *config.Config, file string, provider service.Provider, store database.VectorStore) (*pack.Pack, error) {
	if err := store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear %s store: %w", store.Name(), err)
	}
	opts := append(pack.FromConfig(cfg),
		pack.WithLLM(provider),
		pack.WithEmbedder(provider),
		pack.WithVectorStore(store),
	)
	return pack.New(ctx, file, opts...)
}

func modulesResponse(p *pack.Pack) types.ModulesResponse {
	stats := p.Stats()
	return types.ModulesResponse{
		Source:    p.Source(),
		Modules:   []string{pack.ModuleNodeParser, pack.ModuleRecursiveRetriever, pack.ModuleQueryEngine},
		Nodes:     stats.Nodes,
		BaseNodes: stats.BaseNodes,
		Tables:    stats.Tables,
	}
}
