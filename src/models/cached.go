package models

import (
	"context"
	"strconv"
	"time"

	"github.com/Protocol-Lattice/go-grader/src/cache"
)

// CachedLLM wraps an Agent and caches successful Generate calls.
type CachedLLM struct {
	Agent Agent
	Cache *cache.LRU[string]
}

// NewCachedLLM creates a new CachedLLM wrapper.
func NewCachedLLM(agent Agent, size int, ttl time.Duration) *CachedLLM {
	return &CachedLLM{
		Agent: agent,
		Cache: cache.NewLRU[string](size, ttl),
	}
}

func (c *CachedLLM) Name() string { return c.Agent.Name() }

// Generate checks the cache before calling the underlying agent.
func (c *CachedLLM) Generate(ctx context.Context, req Request) (string, error) {
	parts := append([]string{
		c.Agent.Name(),
		req.System,
		strconv.FormatFloat(float64(req.Temperature), 'f', -1, 32),
		strconv.Itoa(req.MaxTokens),
	}, req.Parts...)
	key := cache.HashKey(parts...)
	if val, ok := c.Cache.Get(key); ok {
		return val, nil
	}

	res, err := c.Agent.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	c.Cache.Set(key, res)
	return res, nil
}

var _ Agent = (*CachedLLM)(nil)
