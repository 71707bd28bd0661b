package server

import (
	"github.com/Protocol-Lattice/go-grader/src/grade"
	"github.com/Protocol-Lattice/go-grader/src/grader"
)

// JobRequest is the body of the grade, rewrite and exemplar endpoints.
type JobRequest struct {
	Assignment   string  `json:"assignment"`
	Instructions string  `json:"instructions"`
	Text         string  `json:"text"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model,omitempty"`
	Temperature  float32 `json:"temperature"`
	MaxScore     float64 `json:"max_score,omitempty"`
}

type JobResponse struct {
	ID            string        `json:"id"`
	Mode          grader.Mode   `json:"mode"`
	Text          string        `json:"text"`
	Score         *grade.Score  `json:"score,omitempty"`
	PartScores    []grade.Score `json:"part_scores,omitempty"`
	ProviderChain []string      `json:"provider_chain"`
	Chunked       bool          `json:"chunked"`
	Chunks        int           `json:"chunks"`
	FailedChunks  []int         `json:"failed_chunks,omitempty"`
	Links         Links         `json:"links"`
}

type Links struct {
	Self string `json:"self"`
}

type NeedsChunkingRequest struct {
	Provider string   `json:"provider"`
	Texts    []string `json:"texts"`
}

type NeedsChunkingResponse struct {
	Provider        string `json:"provider"`
	NeedsChunking   bool   `json:"needs_chunking"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Limit           int    `json:"limit"`
}

type HealthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}
