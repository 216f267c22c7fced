package service

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// fakeLLM answers prompts with respond and records every prompt it saw.
type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.respond == nil {
		return "ok", nil
	}
	return f.respond(prompt)
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// wordEmbedder hashes words into buckets so that texts sharing words are
// close under cosine similarity.
type wordEmbedder struct {
	dim   int
	calls int
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *wordEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *wordEmbedder) Name() string { return "words" }

func (e *wordEmbedder) vector(text string) []float32 {
	dim := e.dim
	if dim == 0 {
		dim = 128
	}
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	return v
}

// summaryLLM returns a table summary naming the first header it finds in
// the prompt, so each table gets a distinct caption.
func summaryLLM() *fakeLLM {
	return &fakeLLM{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Revenue"):
			return "```json\n{\"summary\": \"Revenue by region\", \"columns\": [{\"col_name\": \"Region\", \"col_type\": \"string\", \"summary\": \"sales region\"}, {\"col_name\": \"Revenue\", \"col_type\": \"int\", \"summary\": \"revenue in dollars\"}]}\n```", nil
		case strings.Contains(prompt, "Population"):
			return `{"summary": "Population by city", "columns": [{"col_name": "City", "col_type": "string", "summary": "city name"}, {"col_name": "Population", "col_type": "string", "summary": "number of residents"}]}`, nil
		default:
			return "A table.", nil
		}
	}}
}

const reportHTML = `<html>
<head><title>Quarterly report</title><style>p { color: red; }</style></head>
<body>
<h1>Quarterly report</h1>
<p>This report covers <b>regional</b> results.</p>
<table>
  <caption>Sales</caption>
  <thead><tr><th>Region</th><th>Revenue</th></tr></thead>
  <tbody>
    <tr><td>North</td><td>100</td></tr>
    <tr><td>South</td><td>200</td></tr>
  </tbody>
</table>
<p>Between the tables.</p>
<div>More prose here.</div>
<table><tr><td>solo</td></tr></table>
<table>
  <tr><th>City</th><th>Population</th></tr>
  <tr><td>Hanoi</td><td>8M</td></tr>
</table>
<script>var ignored = true;</script>
</body>
</html>`
