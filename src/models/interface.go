package models

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnknownProvider is returned when no adapter exists for a provider name.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response")
)

// Request is a single-turn completion request.
// Parts are joined with a blank line to form the user message.
type Request struct {
	System      string
	Parts       []string
	Temperature float32
	MaxTokens   int
}

// Prompt returns the user message of the request.
func (r Request) Prompt() string {
	parts := make([]string, 0, len(r.Parts))
	for _, p := range r.Parts {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Agent is the interface every LLM adapter implements.
type Agent interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Settings configures one provider adapter.
type Settings struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	MaxTokens         int
	RequestsPerMinute int
}
