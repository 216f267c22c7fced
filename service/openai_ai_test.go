package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/tables-retriever/config"
	"github.com/tieubaoca/tables-retriever/types"
)

func newOpenAITestServer(t *testing.T, embeddings int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		reply := "echo: " + req.Messages[len(req.Messages)-1].Content
		if req.Messages[0].Role == "system" {
			reply = "[" + req.Messages[0].Content + "] " + reply
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	})
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n := embeddings
		if n < 0 {
			n = len(req.Input)
		}
		data := make([]map[string]any, 0, n)
		// reversed to check that results are ordered by index
		for i := n - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "embed",
			"data":   data,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIServiceGenerate(t *testing.T) {
	srv := newOpenAITestServer(t, -1)
	s := NewOpenAIService(srv.URL, "test-key", "gpt-test", "embed")

	out, err := s.Generate(context.Background(), "hello", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "[be brief] echo: hello", out)

	out, err = s.Generate(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", out)
}

func TestOpenAIServiceChat(t *testing.T) {
	srv := newOpenAITestServer(t, -1)
	s := NewOpenAIService(srv.URL, "test-key", "gpt-test", "embed")

	reply, err := s.Chat(context.Background(), []types.Message{
		{Role: types.RoleUser, Content: "first"},
		{Role: types.RoleAssistant, Content: "ok"},
		{Role: types.RoleUser, Content: "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAssistant, reply.Role)
	assert.Equal(t, "echo: second", reply.Content)
}

func TestOpenAIServiceEmbed(t *testing.T) {
	srv := newOpenAITestServer(t, -1)
	s := NewOpenAIService(srv.URL, "test-key", "gpt-test", "embed")

	vectors, err := s.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vectors)

	vector, err := s.EmbedSingle(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vector)

	vectors, err = s.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestOpenAIServiceEmbedMismatch(t *testing.T) {
	srv := newOpenAITestServer(t, 1)
	s := NewOpenAIService(srv.URL, "test-key", "gpt-test", "embed")

	_, err := s.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), config.LLMConfig{Provider: "openai", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())

	_, err = NewProvider(context.Background(), config.LLMConfig{Provider: "nope"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = NewProvider(context.Background(), config.LLMConfig{Provider: "gemini"})
	assert.Error(t, err, "gemini needs at least one key")
}
