package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

type OllamaLLM struct {
	Client *ollama.Client
	Model  string
	host   string
}

func NewOllamaLLM(s Settings) (*OllamaLLM, error) {
	host := s.BaseURL
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	httpClient := &http.Client{Timeout: 5 * time.Minute}
	return &OllamaLLM{
		Client: ollama.NewClient(u, httpClient),
		Model:  s.Model,
		host:   host,
	}, nil
}

func (o *OllamaLLM) Name() string { return "ollama" }

func (o *OllamaLLM) Generate(ctx context.Context, req Request) (string, error) {
	stream := false
	greq := &ollama.GenerateRequest{
		Model:  o.Model,
		System: req.System,
		Prompt: req.Prompt(),
		Stream: &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		greq.Options["num_predict"] = req.MaxTokens
	}

	var text strings.Builder
	if err := o.Client.Generate(ctx, greq, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return "", fmt.Errorf("ollama (%s): %w", o.host, err)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return text.String(), nil
}

var _ Agent = (*OllamaLLM)(nil)
