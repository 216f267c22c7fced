package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
	"github.com/tieubaoca/tables-retriever/types"
)

const tableSummarySystemPrompt = "You describe tables extracted from HTML documents. Reply with JSON only."

const tableSummaryPrompt = `What is this table about? Give a very concise summary, as if you were writing a caption for it, and describe every column.

Reply with a single JSON object of the form:
{"summary": "<caption>", "columns": [{"col_name": "<name>", "col_type": "<type>", "summary": "<what the column holds>"}]}

%s
Table:
%s
`

// TableSummarizer asks an LLM to caption tables.
type TableSummarizer struct {
	llm     ChatProvider
	workers int
}

func NewTableSummarizer(llm ChatProvider, workers int) *TableSummarizer {
	if workers < 1 {
		workers = 1
	}
	return &TableSummarizer{
		llm:     llm,
		workers: workers,
	}
}

// Summarize captions one table. Output that is not valid JSON is kept
// verbatim as the summary.
func (s *TableSummarizer) Summarize(ctx context.Context, table *types.Table) (*types.TableSummary, error) {
	caption := ""
	if table.Caption != "" {
		caption = "Existing caption: " + table.Caption + "\n"
	}
	raw, err := s.llm.Generate(ctx, fmt.Sprintf(tableSummaryPrompt, caption, table.Markdown()), tableSummarySystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize table: %w", err)
	}
	return parseTableSummary(raw), nil
}

// SummarizeAll captions tables on a bounded pool. The result at index i
// belongs to tables[i].
func (s *TableSummarizer) SummarizeAll(ctx context.Context, tables []*types.Table) ([]*types.TableSummary, error) {
	summaries := make([]*types.TableSummary, len(tables))
	if len(tables) == 0 {
		return summaries, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary pool: %w", err)
	}
	defer pool.Release()

	errs := make([]error, len(tables))
	var wg sync.WaitGroup
	for i, table := range tables {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			summaries[i], errs[i] = s.Summarize(ctx, table)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	logger.Debugw("summarized tables", "count", len(tables), "workers", s.workers)
	return summaries, nil
}

func parseTableSummary(raw string) *types.TableSummary {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var summary types.TableSummary
		if err := json.Unmarshal([]byte(text[start:end+1]), &summary); err == nil && summary.Summary != "" {
			return &summary
		}
	}

	logger.Warnw("table summary is not valid JSON, using raw text", "length", len(raw))
	return &types.TableSummary{Summary: strings.TrimSpace(raw)}
}
