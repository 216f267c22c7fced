// Package pack wires an HTML file into a recursive retriever that answers
// questions over both the prose and the tables embedded in the page.
package pack

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/config"
	"github.com/tieubaoca/tables-retriever/database"
	"github.com/tieubaoca/tables-retriever/service"
	"github.com/tieubaoca/tables-retriever/types"
)

const (
	ModuleNodeParser         = "node_parser"
	ModuleRecursiveRetriever = "recursive_retriever"
	ModuleQueryEngine        = "query_engine"

	rootRetrieverID = "vector"
)

var ErrNoDocuments = errors.New("no documents loaded")

type options struct {
	llm             service.ChatProvider
	embedder        service.EmbeddingProvider
	store           database.VectorStore
	topK            int
	verbose         bool
	parser          service.ElementParserConfig
	embedBatchSize  int
	maxContextChars int
}

type Option func(*options)

func WithLLM(llm service.ChatProvider) Option {
	return func(o *options) {
		o.llm = llm
	}
}

func WithEmbedder(embedder service.EmbeddingProvider) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

func WithVectorStore(store database.VectorStore) Option {
	return func(o *options) {
		o.store = store
	}
}

func WithSimilarityTopK(k int) Option {
	return func(o *options) {
		o.topK = k
	}
}

func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

func WithParserConfig(cfg service.ElementParserConfig) Option {
	return func(o *options) {
		o.parser = cfg
	}
}

func WithEmbedBatchSize(n int) Option {
	return func(o *options) {
		o.embedBatchSize = n
	}
}

func WithMaxContextChars(n int) Option {
	return func(o *options) {
		o.maxContextChars = n
	}
}

// FromConfig maps the parser and retriever sections of cfg to options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithSimilarityTopK(cfg.Retriever.SimilarityTopK),
		WithVerbose(cfg.Retriever.Verbose),
		WithEmbedBatchSize(cfg.Retriever.EmbedBatchSize),
		WithMaxContextChars(cfg.Retriever.MaxContextChars),
		WithParserConfig(service.ElementParserConfig{
			SummaryWorkers: cfg.Parser.SummaryWorkers,
			MinTableRows:   cfg.Parser.MinTableRows,
			MinTableCols:   cfg.Parser.MinTableCols,
		}),
	}
}

// Stats describes what was parsed out of the source file.
type Stats struct {
	Nodes     int
	BaseNodes int
	Tables    int
}

// Pack is the embedded tables retriever built over one HTML file.
type Pack struct {
	source             string
	nodeParser         *service.ElementNodeParser
	recursiveRetriever *service.RecursiveRetriever
	queryEngine        *service.RetrieverQueryEngine
	stats              Stats
}

// New loads htmlPath and builds the whole pipeline: parse into nodes,
// index the base nodes, and wrap the vector retriever in a recursive
// retriever that swaps table summaries for their tables.
func New(ctx context.Context, htmlPath string, opts ...Option) (*Pack, error) {
	o := options{
		topK:    1,
		verbose: true,
		parser:  service.DefaultElementParserConfig,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.fillProviders(ctx); err != nil {
		return nil, err
	}

	docs, err := service.NewFlatReader().LoadData(htmlPath)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, htmlPath)
	}

	nodeParser := service.NewElementNodeParser(o.llm, o.parser)
	rawNodes, err := nodeParser.GetNodesFromDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", htmlPath, err)
	}
	baseNodes, nodeMappings := nodeParser.GetBaseNodesAndMappings(rawNodes)

	vectorIndex, err := service.NewVectorIndex(ctx, baseNodes, o.embedder, o.store, service.VectorIndexOptions{
		EmbedBatchSize: o.embedBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}
	vectorRetriever := vectorIndex.AsRetriever(o.topK)

	recursiveRetriever := service.NewRecursiveRetriever(
		rootRetrieverID,
		map[string]service.Retriever{rootRetrieverID: vectorRetriever},
		service.WithNodeDict(nodeMappings),
		service.WithRetrieverVerbose(o.verbose),
	)
	queryEngine := service.NewRetrieverQueryEngine(
		recursiveRetriever,
		service.NewCompactSynthesizer(o.llm, o.maxContextChars),
	)

	p := &Pack{
		source:             htmlPath,
		nodeParser:         nodeParser,
		recursiveRetriever: recursiveRetriever,
		queryEngine:        queryEngine,
		stats: Stats{
			Nodes:     len(rawNodes),
			BaseNodes: len(baseNodes),
			Tables:    len(nodeMappings),
		},
	}
	logger.Infow("pack ready", p.logFields("top_k", o.topK)...)
	return p, nil
}

// logFields returns the key/value pairs describing p, followed by extra.
// "source" is reserved by the logger for the caller, so the path goes
// under "file".
func (p *Pack) logFields(extra ...any) []any {
	fields := []any{
		"file", p.source,
		"nodes", p.stats.Nodes,
		"base_nodes", p.stats.BaseNodes,
		"tables", p.stats.Tables,
	}
	return append(fields, extra...)
}

// fillProviders falls back to the provider configured in the environment
// and an in-memory store.
func (o *options) fillProviders(ctx context.Context) error {
	if o.llm == nil || o.embedder == nil {
		cfg, err := config.LoadConfig("")
		if err != nil {
			return err
		}
		provider, err := service.NewProvider(ctx, cfg.LLM)
		if err != nil {
			return err
		}
		if o.llm == nil {
			o.llm = provider
		}
		if o.embedder == nil {
			o.embedder = provider
		}
	}
	if o.store == nil {
		o.store = database.NewMemoryStore()
	}
	return nil
}

// Modules returns the pipeline components by name.
func (p *Pack) Modules() map[string]any {
	return map[string]any{
		ModuleNodeParser:         p.nodeParser,
		ModuleRecursiveRetriever: p.recursiveRetriever,
		ModuleQueryEngine:        p.queryEngine,
	}
}

func (p *Pack) NodeParser() *service.ElementNodeParser {
	return p.nodeParser
}

func (p *Pack) RecursiveRetriever() *service.RecursiveRetriever {
	return p.recursiveRetriever
}

func (p *Pack) QueryEngine() *service.RetrieverQueryEngine {
	return p.queryEngine
}

func (p *Pack) Source() string {
	return p.source
}

func (p *Pack) Stats() Stats {
	return p.stats
}

// Run answers query with the query engine.
func (p *Pack) Run(ctx context.Context, query string) (*types.Response, error) {
	return p.queryEngine.Query(ctx, query)
}
