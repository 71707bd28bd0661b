// Package store persists final job results.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Protocol-Lattice/go-grader/src/config"
	"github.com/Protocol-Lattice/go-grader/src/grader"
)

var ErrNotFound = errors.New("result not found")

// ResultStore saves and loads FinalResults by job ID.
type ResultStore interface {
	Save(ctx context.Context, res grader.FinalResult) error
	Get(ctx context.Context, id string) (grader.FinalResult, error)
	Close(ctx context.Context) error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (ResultStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(0), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	case "mongo":
		return NewMongoStore(ctx, cfg.DSN, cfg.Database, cfg.Collection)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
