package chunking

import "fmt"

// ChunkBoundaryError means a set of chunks no longer reconstructs its source
// text. It indicates a bug in the chunker, never bad input.
type ChunkBoundaryError struct {
	Index  int
	Reason string
}

func (e *ChunkBoundaryError) Error() string {
	return fmt.Sprintf("chunking: chunk %d: %s", e.Index, e.Reason)
}
