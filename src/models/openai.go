package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	deepSeekBaseURL   = "https://api.deepseek.com/v1"
	perplexityBaseURL = "https://api.perplexity.ai"
)

// OpenAILLM talks to any OpenAI compatible chat completions endpoint.
// DeepSeek and Perplexity are served by the same adapter with a different
// base URL.
type OpenAILLM struct {
	Client    *openai.Client
	Model     string
	MaxTokens int
	name      string
}

func NewOpenAILLM(s Settings) *OpenAILLM {
	cfg := openai.DefaultConfig(s.APIKey)
	baseURL := s.BaseURL
	if baseURL == "" {
		switch s.Provider {
		case "deepseek":
			baseURL = deepSeekBaseURL
		case "perplexity":
			baseURL = perplexityBaseURL
		}
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	name := s.Provider
	if name == "" {
		name = "openai"
	}
	return &OpenAILLM{
		Client:    openai.NewClientWithConfig(cfg),
		Model:     s.Model,
		MaxTokens: s.MaxTokens,
		name:      name,
	}
}

func (o *OpenAILLM) Name() string { return o.name }

func (o *OpenAILLM) Generate(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt(),
	})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.MaxTokens
	}
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", o.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w", o.name, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Agent = (*OpenAILLM)(nil)
