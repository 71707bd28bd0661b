package grader

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Protocol-Lattice/go-grader/src/chunking"
	"github.com/Protocol-Lattice/go-grader/src/models"
)

const (
	DefaultCallTimeout = 2 * time.Minute
	DefaultMaxDepth    = 2
	DefaultCarryChars  = 600
)

// Processor sends one chunk to one provider.
type Processor struct {
	Estimator   *chunking.Estimator
	CallTimeout time.Duration
	// MaxDepth bounds how many times an oversized chunk is split again.
	MaxDepth int
	// CarryChars is how much of the previous rewritten output frames the next part.
	CarryChars int
}

// Process frames chunk for pos and calls agent. Provider failures are reported
// in the result, never as a panic or a separate error.
func (p *Processor) Process(ctx context.Context, agent models.Agent, job Job, chunk chunking.Chunk, pos Position) ChunkResult {
	start := time.Now()
	out, err := p.process(ctx, agent, job, chunk.Text(), pos, 0)
	res := ChunkResult{
		ChunkIndex: chunk.Index,
		Provider:   agent.Name(),
		Duration:   time.Since(start),
		Source:     chunk.Text(),
	}
	if err != nil {
		res.Err = &ProviderCallError{Provider: agent.Name(), Chunk: chunk.Index, Err: err}
		return res
	}
	res.Output = out
	res.Succeeded = true
	return res
}

func (p *Processor) process(ctx context.Context, agent models.Agent, job Job, text string, pos Position, depth int) (string, error) {
	req := buildRequest(job, text, pos)
	if depth < p.maxDepth() && p.Estimator.NeedsChunking(agent.Name(), req.System, req.Prompt()) {
		if pieces := p.resplit(text); len(pieces) > 1 {
			return p.processPieces(ctx, agent, job, pieces, pos, depth)
		}
	}
	return p.call(ctx, agent, req)
}

// resplit halves text by estimated tokens.
func (p *Processor) resplit(text string) []chunking.Chunk {
	size := chunking.EstimateTokens(text) / 2
	if size < 1 {
		return nil
	}
	return chunking.Chunker{MaxSize: size, Measure: chunking.Tokens}.Split(text)
}

func (p *Processor) processPieces(ctx context.Context, agent models.Agent, job Job, pieces []chunking.Chunk, pos Position, depth int) (string, error) {
	outs := make([]string, 0, len(pieces))
	previous := pos.Previous
	for i, piece := range pieces {
		sub := Position{Index: pos.Index, Total: max(pos.Total, 1), Part: i, Parts: len(pieces), Previous: previous}
		out, err := p.process(ctx, agent, job, piece.Text(), sub, depth+1)
		if err != nil {
			return "", err
		}
		outs = append(outs, out)
		if job.Mode != ModeGrade {
			previous = Tail(out, p.carryChars())
		}
	}
	return strings.Join(outs, "\n\n"), nil
}

// call runs one provider request. The call is detached from ctx cancellation
// so an in-flight request finishes, but it always carries its own timeout.
func (p *Processor) call(ctx context.Context, agent models.Agent, req models.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.callTimeout())
	defer cancel()
	out, err := agent.Generate(callCtx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", models.ErrEmptyResponse
	}
	return out, nil
}

func (p *Processor) callTimeout() time.Duration {
	if p.CallTimeout > 0 {
		return p.CallTimeout
	}
	return DefaultCallTimeout
}

func (p *Processor) carryChars() int {
	if p.CarryChars > 0 {
		return p.CarryChars
	}
	return DefaultCarryChars
}

func (p *Processor) maxDepth() int {
	if p.MaxDepth < 0 {
		return 0
	}
	return p.MaxDepth
}

// Tail returns roughly the last n characters of s, starting at a word.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := len(runes) - n
	for cut < len(runes) && !unicode.IsSpace(runes[cut-1]) {
		cut++
	}
	if cut == len(runes) {
		cut = len(runes) - n
	}
	return strings.TrimSpace(string(runes[cut:]))
}
