package models

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedLLM spaces calls to the wrapped agent so a provider quota is not exceeded.
type RateLimitedLLM struct {
	Agent   Agent
	Limiter *rate.Limiter
}

// NewRateLimitedLLM allows perMinute calls per minute with a burst of one.
func NewRateLimitedLLM(agent Agent, perMinute int) *RateLimitedLLM {
	return &RateLimitedLLM{
		Agent:   agent,
		Limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *RateLimitedLLM) Name() string { return r.Agent.Name() }

func (r *RateLimitedLLM) Generate(ctx context.Context, req Request) (string, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: rate limit: %w", r.Agent.Name(), err)
	}
	return r.Agent.Generate(ctx, req)
}

var _ Agent = (*RateLimitedLLM)(nil)
