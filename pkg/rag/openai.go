package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/pario-ai/ragcache/pkg/config"
	"github.com/pario-ai/ragcache/pkg/models"
)

// Client talks to an OpenAI-compatible API for both embeddings and chat.
type Client struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	temperature    float32
	maxTokens      int
}

// NewClient creates a Client from the producer configuration.
func NewClient(cfg config.ProducerConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:         openai.NewClientWithConfig(clientConfig),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
	}
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, models.UsageRecord, error) {
	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, models.UsageRecord{}, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, models.UsageRecord{}, errors.New("empty embedding response")
	}

	rec := models.UsageRecord{
		Kind:         models.CallEmbedding,
		Model:        c.embeddingModel,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
	}
	return resp.Data[0].Embedding, rec, nil
}

// Generate sends prompt as a single user message and returns the reply.
func (c *Client) Generate(ctx context.Context, prompt string) (string, models.UsageRecord, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", models.UsageRecord{}, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", models.UsageRecord{}, errors.New("empty chat completion response")
	}

	rec := models.UsageRecord{
		Kind:             models.CallChat,
		Model:            c.chatModel,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		LatencyMs:        time.Since(start).Milliseconds(),
	}
	return resp.Choices[0].Message.Content, rec, nil
}
