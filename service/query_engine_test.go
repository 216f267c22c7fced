package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/tables-retriever/types"
)

func TestCompactSynthesizerEmpty(t *testing.T) {
	llm := &fakeLLM{}
	s := NewCompactSynthesizer(llm, 100)

	answer, err := s.Synthesize(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, types.EmptyResponse, answer)
	assert.Empty(t, llm.calls())
}

func TestCompactSynthesizerSingleChunk(t *testing.T) {
	llm := &fakeLLM{respond: func(string) (string, error) { return "  North made 100.  ", nil }}
	s := NewCompactSynthesizer(llm, 1000)

	answer, err := s.Synthesize(context.Background(), "How much did North make?", []types.NodeWithScore{
		{Node: textNode("a", "North,100")},
		{Node: textNode("b", "South,200")},
	})
	require.NoError(t, err)
	assert.Equal(t, "North made 100.", answer)

	calls := llm.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "North,100\n\nSouth,200")
	assert.Contains(t, calls[0], "Query: How much did North make?")
}

func TestCompactSynthesizerRefines(t *testing.T) {
	n := 0
	llm := &fakeLLM{}
	llm.respond = func(string) (string, error) {
		n++
		return "answer " + strings.Repeat("!", n), nil
	}
	s := NewCompactSynthesizer(llm, 20)

	answer, err := s.Synthesize(context.Background(), "q", []types.NodeWithScore{
		{Node: textNode("a", strings.Repeat("a", 15))},
		{Node: textNode("b", strings.Repeat("b", 15))},
		{Node: textNode("c", strings.Repeat("c", 15))},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer !!!", answer)

	calls := llm.calls()
	require.Len(t, calls, 3)
	assert.True(t, strings.HasPrefix(calls[0], "Context information is below."))
	assert.Contains(t, calls[1], "We have provided an existing answer: answer !")
	assert.Contains(t, calls[2], "We have provided an existing answer: answer !!")
}

func TestPackChunks(t *testing.T) {
	assert.Equal(t, []string{"aa\n\nbb", "cc"}, packChunks([]string{"aa", "bb", "cc"}, 7))
	assert.Equal(t, []string{"abc", "def", "g"}, packChunks([]string{"abcdefg"}, 3))
	assert.Empty(t, packChunks(nil, 10))

	for _, chunk := range packChunks([]string{"héllo wörld ünïcode"}, 5) {
		assert.LessOrEqual(t, len(chunk), 5)
		assert.True(t, strings.ToValidUTF8(chunk, "?") == chunk)
	}
}

func TestRetrieverQueryEngine(t *testing.T) {
	nodes := []types.NodeWithScore{{Node: textNode("a", "context"), Score: 0.4}}
	retriever := &staticRetriever{nodes: nodes}
	llm := &fakeLLM{respond: func(string) (string, error) { return "the answer", nil }}
	engine := NewRetrieverQueryEngine(retriever, NewCompactSynthesizer(llm, 0))

	res, err := engine.Query(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", res.Response)
	assert.Equal(t, nodes, res.SourceNodes)
	assert.Equal(t, []string{"a"}, res.SourceNodeIDs())
}

func TestRetrieverQueryEngineErrors(t *testing.T) {
	retriever := &staticRetriever{}
	engine := NewRetrieverQueryEngine(retriever, NewCompactSynthesizer(&fakeLLM{}, 0))

	_, err := engine.Query(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, retriever.calls)

	res, err := engine.Query(context.Background(), "nothing indexed")
	require.NoError(t, err)
	assert.Equal(t, types.EmptyResponse, res.Response)
	assert.Empty(t, res.SourceNodes)

	boom := errors.New("boom")
	engine = NewRetrieverQueryEngine(&staticRetriever{err: boom}, NewCompactSynthesizer(&fakeLLM{}, 0))
	_, err = engine.Query(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}
