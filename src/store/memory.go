package store

import (
	"context"
	"errors"

	"github.com/Protocol-Lattice/go-grader/src/cache"
	"github.com/Protocol-Lattice/go-grader/src/grader"
)

// DefaultMemoryCapacity bounds the in-memory store; the oldest results are evicted first.
const DefaultMemoryCapacity = 10000

type MemoryStore struct {
	results *cache.LRU[grader.FinalResult]
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{results: cache.NewLRU[grader.FinalResult](capacity, 0)}
}

func (m *MemoryStore) Save(_ context.Context, res grader.FinalResult) error {
	if res.ID == "" {
		return errors.New("result has no id")
	}
	m.results.Set(res.ID, res)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (grader.FinalResult, error) {
	res, ok := m.results.Get(id)
	if !ok {
		return grader.FinalResult{}, ErrNotFound
	}
	return res, nil
}

func (m *MemoryStore) Close(context.Context) error {
	m.results.Clear()
	return nil
}
