package models

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingAgent struct {
	name  string
	calls int32
	err   error
}

func (m *countingAgent) Name() string { return m.name }

func (m *countingAgent) Generate(_ context.Context, req Request) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return "", m.err
	}
	return "reply to " + req.Prompt(), nil
}

func TestRequestPromptSkipsBlankParts(t *testing.T) {
	req := Request{Parts: []string{"Rubric", "  ", "Essay"}}
	if got := req.Prompt(); got != "Rubric\n\nEssay" {
		t.Fatalf("unexpected prompt %q", got)
	}
}

func TestDummyLLMEchoesLastLine(t *testing.T) {
	d := NewDummyLLM("")
	got, err := d.Generate(context.Background(), Request{Parts: []string{"first\nsecond\n\n"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Dummy response: second" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestCachedLLMGenerate(t *testing.T) {
	mock := &countingAgent{name: "mock"}
	cached := NewCachedLLM(mock, 10, time.Minute)
	ctx := context.Background()
	req := Request{System: "grade", Parts: []string{"hello"}}

	for i := 0; i < 2; i++ {
		if _, err := cached.Generate(ctx, req); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if count := atomic.LoadInt32(&mock.calls); count != 1 {
		t.Fatalf("expected 1 call, got %d", count)
	}

	req.System = "rewrite"
	if _, err := cached.Generate(ctx, req); err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if count := atomic.LoadInt32(&mock.calls); count != 2 {
		t.Fatalf("a different system prompt must miss the cache, got %d calls", count)
	}
}

func TestCachedLLMDoesNotCacheErrors(t *testing.T) {
	mock := &countingAgent{name: "mock", err: errors.New("boom")}
	cached := NewCachedLLM(mock, 10, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cached.Generate(context.Background(), Request{Parts: []string{"x"}}); err == nil {
			t.Fatalf("expected error")
		}
	}
	if count := atomic.LoadInt32(&mock.calls); count != 2 {
		t.Fatalf("expected 2 calls, got %d", count)
	}
}

func TestRateLimitedLLMHonoursContext(t *testing.T) {
	mock := &countingAgent{name: "mock"}
	limited := NewRateLimitedLLM(mock, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := limited.Generate(ctx, Request{Parts: []string{"a"}}); err != nil {
		t.Fatalf("first call should pass the burst: %v", err)
	}
	if _, err := limited.Generate(ctx, Request{Parts: []string{"b"}}); err == nil {
		t.Fatalf("second call should fail waiting for the limiter")
	}
	if count := atomic.LoadInt32(&mock.calls); count != 1 {
		t.Fatalf("expected 1 call, got %d", count)
	}
}

func TestNewLLMProviderUnknown(t *testing.T) {
	_, err := NewLLMProvider(context.Background(), Settings{Provider: "mystery"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewLLMProviderOpenAICompatible(t *testing.T) {
	a, err := NewLLMProvider(context.Background(), Settings{Provider: "pplx", Model: "sonar"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Name() != "perplexity" {
		t.Fatalf("unexpected name %q", a.Name())
	}
}

func TestRegistryBuildsOnceAndWraps(t *testing.T) {
	var built int32
	factory := func(_ context.Context, s Settings) (Agent, error) {
		atomic.AddInt32(&built, 1)
		return &countingAgent{name: s.Provider}, nil
	}
	r := NewRegistry(map[string]Settings{"openai": {Model: "m"}},
		WithFactory(factory), WithCache(4, time.Minute))

	a1, err := r.Get(context.Background(), "openai", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, _ := r.Get(context.Background(), "openai", "m")
	if a1 != a2 || atomic.LoadInt32(&built) != 1 {
		t.Fatalf("agent should be built once")
	}
	if _, ok := a1.(*CachedLLM); !ok {
		t.Fatalf("expected cached agent, got %T", a1)
	}
	if a1.Name() != "openai" {
		t.Fatalf("unexpected name %q", a1.Name())
	}

	a3, err := r.Get(context.Background(), "openai", "other-model")
	if err != nil || a3 == a1 || atomic.LoadInt32(&built) != 2 {
		t.Fatalf("a model override should build a separate agent")
	}

	if _, err := r.Get(context.Background(), "nope", ""); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}

	r.Register("dummy", NewDummyLLM(""))
	names := r.Names()
	if len(names) != 2 || names[0] != "dummy" || names[1] != "openai" {
		t.Fatalf("unexpected names %v", names)
	}
}
