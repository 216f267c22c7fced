package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/generative-ai-go/genai"
	"github.com/kart-io/logger"
	"google.golang.org/api/option"
)

const ProviderGemini = "gemini"

type GeminiService struct {
	apiKeys    []string
	currentKey int
	client     *geminiClient
	modelName  string
	embedModel string
	mu         sync.Mutex
}

// geminiClient counts the calls using it so that a rotated-out client is
// closed only once they have all returned.
type geminiClient struct {
	*genai.Client
	inflight sync.WaitGroup
	closed   atomic.Bool
}

func (c *geminiClient) release() {
	c.inflight.Done()
}

func (c *geminiClient) closeWhenIdle() error {
	c.inflight.Wait()
	err := c.Close()
	c.closed.Store(true)
	return err
}

func NewGeminiService(ctx context.Context, apiKeys []string, modelName, embedModel string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}

	service := &GeminiService{
		apiKeys:    apiKeys,
		currentKey: 0,
		modelName:  modelName,
		embedModel: embedModel,
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKeys[0]))
	if err != nil {
		return nil, err
	}
	service.client = &geminiClient{Client: client}
	return service, nil
}

func (s *GeminiService) Name() string {
	return ProviderGemini
}

// acquire returns the current client. Callers must release it.
func (s *GeminiService) acquire() *geminiClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.inflight.Add(1)
	return s.client
}

// rotateAPIKey switches to the next key after failed returned an error.
// If another call already rotated away from failed, it does nothing.
func (s *GeminiService) rotateAPIKey(ctx context.Context, failed *geminiClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != failed {
		return nil
	}
	if len(s.apiKeys) < 2 {
		return errors.New("no other API key to rotate to")
	}
	next := (s.currentKey + 1) % len(s.apiKeys)
	client, err := genai.NewClient(ctx, option.WithAPIKey(s.apiKeys[next]))
	if err != nil {
		return err
	}
	old := s.client
	s.currentKey = next
	s.client = &geminiClient{Client: client}
	go func() {
		if err := old.closeWhenIdle(); err != nil {
			logger.Warnw("failed to close gemini client", "error", err.Error())
		}
	}()
	logger.Infow("rotated gemini api key", "key_index", s.currentKey)
	return nil
}

func (s *GeminiService) model(client *geminiClient, systemPrompt string) *genai.GenerativeModel {
	model := client.GenerativeModel(s.modelName)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	return model
}

func (s *GeminiService) generate(ctx context.Context, prompt string, systemPrompt string) (*genai.GenerateContentResponse, *geminiClient, error) {
	client := s.acquire()
	defer client.release()
	resp, err := s.model(client, systemPrompt).GenerateContent(ctx, genai.Text(prompt))
	return resp, client, err
}

func (s *GeminiService) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	resp, client, err := s.generate(ctx, prompt, systemPrompt)
	if err != nil {
		// Try rotating API key if there's an error
		if rotateErr := s.rotateAPIKey(ctx, client); rotateErr != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		resp, _, err = s.generate(ctx, prompt, systemPrompt)
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
	}

	if len(resp.Candidates) == 0 {
		return "", errors.New("no response generated")
	}

	return candidatesText(resp.Candidates), nil
}

func (s *GeminiService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client := s.acquire()
	defer client.release()

	em := client.EmbeddingModel(s.embedModel)
	batch := em.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingMismatch, len(res.Embeddings), len(texts))
	}
	embeddings := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		embeddings[i] = e.Values
	}
	return embeddings, nil
}

func (s *GeminiService) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	client := s.acquire()
	defer client.release()

	res, err := client.EmbeddingModel(s.embedModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if res.Embedding == nil {
		return nil, errors.New("no embedding generated")
	}
	return res.Embedding.Values, nil
}

// Close closes the current client once calls using it have returned.
func (s *GeminiService) Close() error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	return client.closeWhenIdle()
}

func candidatesText(candidates []*genai.Candidate) string {
	var content strings.Builder
	for _, cand := range candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				content.WriteString(string(text))
			}
		}
	}
	return content.String()
}
