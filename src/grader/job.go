// Package grader runs grading and rewriting jobs through LLM providers,
// chunking documents that do not fit a provider's window and falling back to
// alternate providers when a call fails.
package grader

import (
	"fmt"
	"strings"
	"time"

	"github.com/Protocol-Lattice/go-grader/src/grade"
)

type Mode string

const (
	ModeGrade    Mode = "grade"
	ModeRewrite  Mode = "rewrite"
	ModeExemplar Mode = "exemplar"
)

// ParseMode resolves a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeGrade, ModeRewrite, ModeExemplar:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Job is one grading or rewriting request. It is not modified once accepted.
type Job struct {
	ID           string  `json:"id"`
	Assignment   string  `json:"assignment"`
	Instructions string  `json:"instructions"`
	Target       string  `json:"target"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model,omitempty"`
	Temperature  float32 `json:"temperature"`
	Mode         Mode    `json:"mode"`
	// MaxScore is the declared maximum of the assignment; 0 means unknown.
	MaxScore float64 `json:"max_score,omitempty"`
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.Target) == "" {
		return ErrEmptyJob
	}
	if _, err := ParseMode(string(j.Mode)); err != nil {
		return err
	}
	if j.MaxScore < 0 {
		return fmt.Errorf("max score must not be negative, got %g", j.MaxScore)
	}
	return nil
}

// Position locates a chunk within its job. Part and Parts are set when an
// oversized chunk was split again; they are zero otherwise.
type Position struct {
	Index    int
	Total    int
	Part     int
	Parts    int
	Previous string
}

// ChunkResult is the outcome of processing one chunk with one provider.
type ChunkResult struct {
	ChunkIndex int
	Output     string
	Succeeded  bool
	Provider   string
	Err        error
	Duration   time.Duration
	// Source is the original chunk text, kept for rewrite jobs whose chunk failed.
	Source string
}

// Attempt is one provider call made for a job.
type Attempt struct {
	Chunk    int           `json:"chunk" bson:"chunk"`
	Provider string        `json:"provider" bson:"provider"`
	Duration time.Duration `json:"duration_ns" bson:"duration_ns"`
	Error    string        `json:"error,omitempty" bson:"error,omitempty"`
}

// FinalResult is the merged output of a job.
type FinalResult struct {
	ID             string        `json:"id" bson:"_id"`
	Mode           Mode          `json:"mode" bson:"mode"`
	Text           string        `json:"text" bson:"text"`
	Score          *grade.Score  `json:"score,omitempty" bson:"score,omitempty"`
	PerChunkScores []grade.Score `json:"per_chunk_scores,omitempty" bson:"per_chunk_scores,omitempty"`
	ProviderChain  []string      `json:"provider_chain" bson:"provider_chain"`
	Chunked        bool          `json:"chunked" bson:"chunked"`
	Chunks         int           `json:"chunks" bson:"chunks"`
	FailedChunks   []int         `json:"failed_chunks,omitempty" bson:"failed_chunks,omitempty"`
	Attempts       []Attempt     `json:"attempts,omitempty" bson:"attempts,omitempty"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
}
