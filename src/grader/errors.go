package grader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyJob    = errors.New("job has no target text")
	ErrUnknownMode = errors.New("unknown mode")
)

// UserMessage is what callers show when every provider failed.
const UserMessage = "could not process submission; try a shorter document or try again later"

// ProviderCallError wraps a failed provider call for one chunk.
type ProviderCallError struct {
	Provider string
	Chunk    int
	Err      error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("provider %s failed on chunk %d: %v", e.Provider, e.Chunk, e.Err)
}

func (e *ProviderCallError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *ProviderCallError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// AllProvidersFailedError is returned once every provider of the fallback
// chain failed for the same chunk.
type AllProvidersFailedError struct {
	Chunk     int
	Providers []string
	Errs      []error
}

func (e *AllProvidersFailedError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: chunk %d failed on %s: %s",
		UserMessage, e.Chunk, strings.Join(e.Providers, ", "), strings.Join(msgs, "; "))
}

func (e *AllProvidersFailedError) Unwrap() []error { return e.Errs }
