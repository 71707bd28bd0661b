package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

type GeminiLLM struct {
	Client    *genai.Client
	Model     string
	MaxTokens int
}

func NewGeminiLLM(ctx context.Context, s Settings) (*GeminiLLM, error) {
	if s.APIKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(s.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiLLM{Client: client, Model: s.Model, MaxTokens: s.MaxTokens}, nil
}

func (g *GeminiLLM) Name() string { return "gemini" }

func (g *GeminiLLM) Generate(ctx context.Context, req Request) (string, error) {
	model := g.Client.GenerativeModel(g.Model)
	model.SetTemperature(req.Temperature)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.MaxTokens
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt()))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return b.String(), nil
}

// Close releases the underlying client.
func (g *GeminiLLM) Close() error { return g.Client.Close() }

var _ Agent = (*GeminiLLM)(nil)
