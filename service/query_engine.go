package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/types"
)

var ErrEmptyQuery = errors.New("query is empty")

const defaultMaxContextChars = 12000

const textQAPrompt = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `

const refinePrompt = `The original query is as follows: %s
We have provided an existing answer: %s
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
%s
------------
Given the new context, refine the original answer to better answer the query. If the context isn't useful, return the original answer.
Refined Answer: `

// Synthesizer turns retrieved nodes into an answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, nodes []types.NodeWithScore) (string, error)
}

// CompactSynthesizer packs node texts into as few prompts as fit
// maxContextChars, answers the first and refines with the rest.
type CompactSynthesizer struct {
	llm             ChatProvider
	maxContextChars int
}

func NewCompactSynthesizer(llm ChatProvider, maxContextChars int) *CompactSynthesizer {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &CompactSynthesizer{
		llm:             llm,
		maxContextChars: maxContextChars,
	}
}

func (s *CompactSynthesizer) Synthesize(ctx context.Context, query string, nodes []types.NodeWithScore) (string, error) {
	texts := make([]string, 0, len(nodes))
	for _, nws := range nodes {
		if nws.Node != nil && strings.TrimSpace(nws.Node.Text) != "" {
			texts = append(texts, nws.Node.Text)
		}
	}
	chunks := packChunks(texts, s.maxContextChars)
	if len(chunks) == 0 {
		return types.EmptyResponse, nil
	}

	answer, err := s.llm.Generate(ctx, fmt.Sprintf(textQAPrompt, chunks[0], query), "")
	if err != nil {
		return "", fmt.Errorf("failed to answer query: %w", err)
	}
	for i, chunk := range chunks[1:] {
		logger.Debugw("refining answer", "chunk", i+1, "chunks", len(chunks))
		refined, err := s.llm.Generate(ctx, fmt.Sprintf(refinePrompt, query, answer, chunk), "")
		if err != nil {
			return "", fmt.Errorf("failed to refine answer: %w", err)
		}
		answer = refined
	}
	return strings.TrimSpace(answer), nil
}

// packChunks joins texts with blank lines into chunks of at most limit
// bytes. A single text longer than limit is split on its own.
func packChunks(texts []string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, text := range texts {
		for _, piece := range splitText(text, limit) {
			sep := 0
			if cur.Len() > 0 {
				sep = 2
			}
			if cur.Len()+sep+len(piece) > limit {
				flush()
				sep = 0
			}
			if sep > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(piece)
		}
	}
	flush()
	return chunks
}

func splitText(text string, limit int) []string {
	var pieces []string
	for len(text) > limit {
		cut := limit
		if i := strings.LastIndex(text[:limit], "\n"); i > limit/2 {
			cut = i
		}
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		pieces = append(pieces, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

// RetrieverQueryEngine retrieves context and synthesizes an answer from it.
type RetrieverQueryEngine struct {
	retriever   Retriever
	synthesizer Synthesizer
}

func NewRetrieverQueryEngine(retriever Retriever, synthesizer Synthesizer) *RetrieverQueryEngine {
	return &RetrieverQueryEngine{
		retriever:   retriever,
		synthesizer: synthesizer,
	}
}

func (e *RetrieverQueryEngine) Retriever() Retriever {
	return e.retriever
}

func (e *RetrieverQueryEngine) Query(ctx context.Context, query string) (*types.Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	nodes, err := e.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve: %w", err)
	}
	answer, err := e.synthesizer.Synthesize(ctx, query, nodes)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []types.NodeWithScore{}
	}
	return &types.Response{
		Response:    answer,
		SourceNodes: nodes,
	}, nil
}
