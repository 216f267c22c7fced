package pack_test

import (
	"context"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/tables-retriever/config"
	"github.com/tieubaoca/tables-retriever/database"
	"github.com/tieubaoca/tables-retriever/pack"
	"github.com/tieubaoca/tables-retriever/service"
	"github.com/tieubaoca/tables-retriever/types"
)

const salesHTML = `<html><body>
<h1>Weather diary</h1>
<p>It rained all week and the garden is green.</p>
<table>
  <tr><th>Region</th><th>Revenue</th></tr>
  <tr><td>North</td><td>100</td></tr>
  <tr><td>South</td><td>200</td></tr>
</table>
</body></html>`

type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, prompt string, _ string) (string, error) {
	if strings.Contains(prompt, "Reply with a single JSON object") {
		return `{"summary": "Revenue by region", "columns": [{"col_name": "Region", "col_type": "string", "summary": "sales region"}, {"col_name": "Revenue", "col_type": "int", "summary": "revenue"}]}`, nil
	}
	if strings.Contains(prompt, "| North | 100 |") {
		return "North made 100.", nil
	}
	return "I could not find the table.", nil
}

func (stubLLM) Name() string { return "stub" }

type bagOfWords struct{}

func (e bagOfWords) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedSingle(ctx, t)
	}
	return out, nil
}

func (bagOfWords) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%64]++
	}
	return v, nil
}

func (bagOfWords) Name() string { return "bow" }

func writeHTML(t *testing.T, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))
	return path
}

func newTestPack(t *testing.T, opts ...pack.Option) *pack.Pack {
	t.Helper()
	base := []pack.Option{pack.WithLLM(stubLLM{}), pack.WithEmbedder(bagOfWords{}), pack.WithVerbose(false)}
	p, err := pack.New(context.Background(), writeHTML(t, salesHTML), append(base, opts...)...)
	require.NoError(t, err)
	return p
}

func TestModules(t *testing.T) {
	p := newTestPack(t)

	modules := p.Modules()
	require.Len(t, modules, 3)
	assert.Same(t, p.NodeParser(), modules[pack.ModuleNodeParser])
	assert.Same(t, p.RecursiveRetriever(), modules[pack.ModuleRecursiveRetriever])
	assert.Same(t, p.QueryEngine(), modules[pack.ModuleQueryEngine])

	stats := p.Stats()
	assert.Equal(t, 3, stats.Nodes, "text, index and table")
	assert.Equal(t, 2, stats.BaseNodes)
	assert.Equal(t, 1, stats.Tables)
	assert.True(t, strings.HasSuffix(p.Source(), "sales.html"))
}

func TestRunSubstitutesTable(t *testing.T) {
	p := newTestPack(t)

	res, err := p.Run(context.Background(), "revenue by region")
	require.NoError(t, err)
	assert.Equal(t, "North made 100.", res.Response)
	require.Len(t, res.SourceNodes, 1, "top k defaults to one")

	node := res.SourceNodes[0].Node
	assert.Equal(t, types.NodeKindTable, node.Kind)
	assert.True(t, strings.HasSuffix(node.ID, "_table"))
	assert.Contains(t, node.Text, "| South | 200 |")
}

func TestRunMatchesQueryEngine(t *testing.T) {
	p := newTestPack(t)
	ctx := context.Background()

	direct, err := p.QueryEngine().Query(ctx, "revenue by region")
	require.NoError(t, err)
	viaRun, err := p.Run(ctx, "revenue by region")
	require.NoError(t, err)
	assert.Equal(t, direct.Response, viaRun.Response)
	assert.Equal(t, direct.SourceNodeIDs(), viaRun.SourceNodeIDs())

	_, err = p.Run(ctx, "")
	assert.ErrorIs(t, err, service.ErrEmptyQuery)
}

func TestSimilarityTopK(t *testing.T) {
	store := database.NewMemoryStore()
	p := newTestPack(t, pack.WithSimilarityTopK(2), pack.WithVectorStore(store))
	assert.Equal(t, 2, store.Len())

	res, err := p.Run(context.Background(), "revenue by region")
	require.NoError(t, err)
	assert.Len(t, res.SourceNodes, 2)
}

func TestMissingFile(t *testing.T) {
	_, err := pack.New(context.Background(), filepath.Join(t.TempDir(), "missing.html"),
		pack.WithLLM(stubLLM{}), pack.WithEmbedder(bagOfWords{}))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestStaleNodesInSharedStore(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	opts := []pack.Option{
		pack.WithLLM(stubLLM{}),
		pack.WithEmbedder(bagOfWords{}),
		pack.WithVectorStore(store),
		pack.WithVerbose(false),
	}

	// the earlier file's only node is an exact match for the query
	_, err := pack.New(ctx, writeHTML(t, "<p>revenue by region</p>"), opts...)
	require.NoError(t, err)
	p, err := pack.New(ctx, writeHTML(t, salesHTML), opts...)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	res, err := p.Run(ctx, "revenue by region")
	require.NoError(t, err)
	assert.Equal(t, "North made 100.", res.Response)
	require.Len(t, res.SourceNodes, 1)
	assert.Equal(t, types.NodeKindTable, res.SourceNodes[0].Node.Kind)
}

const wideTablesHTML = `<html><body>
<p>Weather diary for the week.</p>
<table>
  <tr><th>Day</th><th>Rain</th></tr>
  <tr><td>Mon</td><td>yes</td></tr>
</table>
<table>
  <tr><th>Region</th><th>Revenue</th><th>Year</th></tr>
  <tr><td>North</td><td>100</td><td>2024</td></tr>
</table>
</body></html>`

func TestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parser:
  min_table_cols: 3
retriever:
  similarity_top_k: 2
  verbose: false
`), 0o644))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	opts := append(pack.FromConfig(cfg), pack.WithLLM(stubLLM{}), pack.WithEmbedder(bagOfWords{}))
	p, err := pack.New(context.Background(), writeHTML(t, wideTablesHTML), opts...)
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Tables, "the two column table is demoted to text")
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 2, stats.BaseNodes)

	res, err := p.Run(context.Background(), "revenue by region")
	require.NoError(t, err)
	assert.Len(t, res.SourceNodes, 2, "similarity_top_k from the file")
}
