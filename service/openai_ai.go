package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kart-io/logger"
	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/tables-retriever/types"
)

const ProviderOpenAI = "openai"

type OpenAIService struct {
	client     *openai.Client
	model      string
	embedModel string
}

func NewOpenAIService(baseURL string, apiKey, model, embedModel string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL // Set this to your local LLM server URL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIService{
		client:     client,
		model:      model,
		embedModel: embedModel,
	}
}

func (s *OpenAIService) Name() string {
	return ProviderOpenAI
}

// Generate answers prompt, optionally under a system prompt.
func (s *OpenAIService) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := make([]types.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, types.Message{Role: types.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, types.Message{Role: types.RoleUser, Content: prompt})

	reply, err := s.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// Chat sends a whole conversation and returns the assistant reply.
func (s *OpenAIService) Chat(ctx context.Context, messages []types.Message) (*types.Message, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Messages: openaiMessages,
			Model:    s.model,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response generated")
	}
	logger.Debugw("openai completion", "model", s.model, "total_tokens", resp.Usage.TotalTokens)

	return &types.Message{
		Role:    types.RoleAssistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func (s *OpenAIService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(s.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingMismatch, len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	embeddings := make([][]float32, len(data))
	for i, d := range data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

func (s *OpenAIService) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
