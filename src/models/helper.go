package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// NewLLMProvider returns a concrete Agent for s.Provider.
func NewLLMProvider(ctx context.Context, s Settings) (Agent, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "openai", "gpt":
		s.Provider = "openai"
		return NewOpenAILLM(s), nil
	case "deepseek":
		s.Provider = "deepseek"
		return NewOpenAILLM(s), nil
	case "perplexity", "pplx":
		s.Provider = "perplexity"
		return NewOpenAILLM(s), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, s)
	case "ollama":
		return NewOllamaLLM(s)
	case "anthropic", "claude":
		return NewAnthropicLLM(s), nil
	case "dummy":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, s.Provider)
	}
}

// Registry resolves provider names to agents and builds them lazily.
type Registry struct {
	mu       sync.Mutex
	settings map[string]Settings
	agents   map[string]Agent
	factory  func(context.Context, Settings) (Agent, error)

	cacheSize int
	cacheTTL  time.Duration
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithCache wraps every built agent in a CachedLLM.
func WithCache(size int, ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.cacheSize = size
		r.cacheTTL = ttl
	}
}

// WithFactory replaces NewLLMProvider as the agent constructor.
func WithFactory(f func(context.Context, Settings) (Agent, error)) RegistryOption {
	return func(r *Registry) { r.factory = f }
}

func NewRegistry(settings map[string]Settings, opts ...RegistryOption) *Registry {
	r := &Registry{
		settings: make(map[string]Settings, len(settings)),
		agents:   make(map[string]Agent),
		factory:  NewLLMProvider,
	}
	for name, s := range settings {
		if s.Provider == "" {
			s.Provider = name
		}
		r.settings[name] = s
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs a ready-made agent under name.
func (r *Registry) Register(name string, agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = agent
}

// Get returns the agent for name, constructing it on first use. A non-empty
// model overrides the configured one and gets its own agent.
func (r *Registry) Get(ctx context.Context, name, model string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, configured := r.settings[name]
	key := name
	if model != "" && model != s.Model {
		key = name + "/" + model
	}
	if a, ok := r.agents[key]; ok {
		return a, nil
	}
	if !configured {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if model != "" {
		s.Model = model
	}
	a, err := r.factory(ctx, s)
	if err != nil {
		return nil, err
	}
	if s.RequestsPerMinute > 0 {
		a = NewRateLimitedLLM(a, s.RequestsPerMinute)
	}
	if r.cacheSize > 0 {
		a = NewCachedLLM(a, r.cacheSize, r.cacheTTL)
	}
	r.agents[key] = a
	return a, nil
}

// Names lists every provider the registry can serve.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(r.settings)+len(r.agents))
	for n := range r.settings {
		seen[n] = struct{}{}
	}
	for n := range r.agents {
		if name, _, found := strings.Cut(n, "/"); found {
			n = name
		}
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
