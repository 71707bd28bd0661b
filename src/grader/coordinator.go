package grader

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/go-grader/src/chunking"
	"github.com/Protocol-Lattice/go-grader/src/concurrent"
	"github.com/Protocol-Lattice/go-grader/src/logging"
	"github.com/Protocol-Lattice/go-grader/src/models"
)

// Resolver returns the agent serving a provider. A non-empty model overrides
// the provider's configured model.
type Resolver interface {
	Get(ctx context.Context, provider, model string) (models.Agent, error)
}

// Coordinator runs jobs across a fallback chain of providers.
type Coordinator struct {
	Agents    Resolver
	Estimator *chunking.Estimator
	Processor *Processor
	// Priority is the fixed fallback order tried after the requested provider.
	Priority []string
	// Concurrency above 1 lets grading jobs process chunks in parallel.
	Concurrency int
	Synthesis   bool
	Logger      logging.Logger
	now         func() time.Time
}

type Option func(*Coordinator)

func WithEstimator(e *chunking.Estimator) Option { return func(c *Coordinator) { c.Estimator = e } }

func WithPriority(providers ...string) Option {
	return func(c *Coordinator) { c.Priority = providers }
}

func WithConcurrency(n int) Option { return func(c *Coordinator) { c.Concurrency = n } }

func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.Processor.CallTimeout = d }
}

func WithMaxDepth(n int) Option { return func(c *Coordinator) { c.Processor.MaxDepth = n } }

func WithCarryChars(n int) Option { return func(c *Coordinator) { c.Processor.CarryChars = n } }

// WithSynthesis enables the LLM synthesis pass for chunked grading jobs.
func WithSynthesis(on bool) Option { return func(c *Coordinator) { c.Synthesis = on } }

func WithLogger(l logging.Logger) Option { return func(c *Coordinator) { c.Logger = l } }

func NewCoordinator(agents Resolver, opts ...Option) *Coordinator {
	c := &Coordinator{
		Agents:      agents,
		Estimator:   chunking.NewEstimator(nil),
		Processor:   &Processor{CallTimeout: DefaultCallTimeout, MaxDepth: DefaultMaxDepth, CarryChars: DefaultCarryChars},
		Concurrency: 1,
		Logger:      logging.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Processor.Estimator = c.Estimator
	return c
}

// FallbackChain puts requested first, then providers in order, without duplicates.
func FallbackChain(requested string, providers []string) []string {
	chain := make([]string, 0, len(providers)+1)
	seen := make(map[string]bool, len(providers)+1)
	for _, p := range append([]string{requested}, providers...) {
		p = chunking.NormalizeProvider(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		chain = append(chain, p)
	}
	return chain
}

// Run processes job with the coordinator's priority list as fallback order.
func (c *Coordinator) Run(ctx context.Context, job Job) (FinalResult, error) {
	return c.RunWithFallback(ctx, job, c.Priority)
}

// ProcessWithChunking runs job and returns only its final text.
func (c *Coordinator) ProcessWithChunking(ctx context.Context, job Job) (string, error) {
	res, err := c.Run(ctx, job)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// jobRun holds the mutable state of one job.
type jobRun struct {
	job      Job
	chain    []string
	chunks   []chunking.Chunk
	results  []ChunkResult
	attempts []Attempt
	log      logging.Logger
}

// RunWithFallback processes job, trying job.Provider first and then
// providers in order. A succeeded chunk is never processed again; each
// provider is tried at most once per chunk. It returns
// *AllProvidersFailedError once a chunk has failed on every provider, except
// for rewrite jobs, which keep the original text of a failed chunk as long as
// an earlier chunk succeeded.
func (c *Coordinator) RunWithFallback(ctx context.Context, job Job, providers []string) (FinalResult, error) {
	if err := job.Validate(); err != nil {
		return FinalResult{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	chain := FallbackChain(job.Provider, providers)
	if len(chain) == 0 {
		return FinalResult{}, &AllProvidersFailedError{Errs: []error{models.ErrUnknownProvider}}
	}

	run := &jobRun{job: job, chain: chain, log: c.Logger.With("job", job.ID, "mode", string(job.Mode))}
	chunked := c.Estimator.NeedsChunking(chain[0], job.Assignment, job.Instructions, job.Target)
	run.chunks = c.split(run, chunked)
	run.results = make([]ChunkResult, len(run.chunks))
	run.log.Info("job started", "provider", chain[0], "chain", chain, "chunks", len(run.chunks))

	var err error
	if job.Mode == ModeGrade && c.Concurrency > 1 && len(run.chunks) > 1 {
		err = c.runRounds(ctx, run)
	} else {
		err = c.runSequential(ctx, run)
	}
	if err != nil {
		run.log.Error("job failed", "error", err, "attempts", len(run.attempts))
		return FinalResult{}, err
	}

	acc := &Accumulator{Logger: run.log}
	if c.Synthesis {
		acc.Synthesize = func(ctx context.Context, req models.Request) (string, error) {
			return c.synthesize(ctx, run, req)
		}
	}
	final := acc.Accumulate(ctx, job, run.results)
	final.Chunked = len(run.chunks) > 1
	final.Attempts = run.attempts
	final.ProviderChain = make([]string, len(run.attempts))
	for i, a := range run.attempts {
		final.ProviderChain[i] = a.Provider
	}
	final.CreatedAt = c.now().UTC()
	run.log.Info("job finished", "chunks", final.Chunks, "attempts", len(run.attempts), "failed_chunks", len(final.FailedChunks))
	return final, nil
}

// split returns the chunks of job.Target, sized for the requested provider.
// A job that fits that provider, or whose chunks fail verification, is
// processed as a single chunk. Fallbacks with smaller windows re-split in
// the Processor.
func (c *Coordinator) split(run *jobRun, chunked bool) []chunking.Chunk {
	whole := []chunking.Chunk{{Index: 0, Content: run.job.Target, Start: 0, End: len(run.job.Target)}}
	if !chunked {
		return whole
	}
	budget := c.Estimator.ChunkBudget(run.chain[:1], systemPrompt(run.job.Mode), run.job.Assignment, run.job.Instructions)
	chunks := chunking.Chunker{MaxSize: budget, Measure: chunking.Tokens}.Split(run.job.Target)
	if err := chunking.Verify(run.job.Target, chunks); err != nil {
		var boundary *chunking.ChunkBoundaryError
		if errors.As(err, &boundary) {
			run.log.Error("chunk verification failed, processing directly", "chunk", boundary.Index, "reason", boundary.Reason)
		}
		return whole
	}
	if len(chunks) == 0 {
		return whole
	}
	return chunks
}

func (c *Coordinator) runSequential(ctx context.Context, run *jobRun) error {
	var previous string
	anySucceeded := false
	for i, chunk := range run.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos := Position{Index: i, Total: len(run.chunks), Previous: previous}
		res, err := c.runChunk(ctx, run, chunk, pos)
		if err != nil {
			var exhausted *AllProvidersFailedError
			if !errors.As(err, &exhausted) || run.job.Mode == ModeGrade || !anySucceeded {
				return err
			}
			run.log.Warn("keeping original text for failed chunk", "chunk", i, "error", err)
			previous = ""
			run.results[i] = res
			continue
		}
		anySucceeded = true
		if run.job.Mode != ModeGrade {
			previous = Tail(res.Output, c.Processor.carryChars())
		}
		run.results[i] = res
	}
	return nil
}

// runChunk walks the chain for one chunk until a provider succeeds.
func (c *Coordinator) runChunk(ctx context.Context, run *jobRun, chunk chunking.Chunk, pos Position) (ChunkResult, error) {
	failed := ChunkResult{ChunkIndex: chunk.Index, Source: chunk.Text()}
	exhausted := &AllProvidersFailedError{Chunk: chunk.Index}
	for _, name := range run.chain {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		agent, err := c.Agents.Get(ctx, name, run.modelFor(name))
		if err != nil {
			c.record(run, chunk.Index, name, 0, err)
			exhausted.Providers = append(exhausted.Providers, name)
			exhausted.Errs = append(exhausted.Errs, &ProviderCallError{Provider: name, Chunk: chunk.Index, Err: err})
			continue
		}
		res := c.Processor.Process(ctx, agent, run.job, chunk, pos)
		res.Provider = name
		c.record(run, chunk.Index, name, res.Duration, res.Err)
		if res.Succeeded {
			return res, nil
		}
		failed.Err = res.Err
		exhausted.Providers = append(exhausted.Providers, name)
		exhausted.Errs = append(exhausted.Errs, res.Err)
	}
	return failed, exhausted
}

// runRounds processes grading chunks in parallel. Round r sends every chunk
// still pending to chain[r]; results keep their chunk index.
func (c *Coordinator) runRounds(ctx context.Context, run *jobRun) error {
	pending := make([]int, len(run.chunks))
	for i := range pending {
		pending[i] = i
	}
	errs := make(map[int]*AllProvidersFailedError, len(run.chunks))
	for _, name := range run.chain {
		if len(pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		agent, err := c.Agents.Get(ctx, name, run.modelFor(name))
		if err != nil {
			for _, idx := range pending {
				c.record(run, idx, name, 0, err)
				noteFailure(errs, idx, name, &ProviderCallError{Provider: name, Chunk: idx, Err: err})
			}
			continue
		}
		out, err := concurrent.OrderedMap(ctx, pending, c.Concurrency, func(ctx context.Context, _ int, idx int) ChunkResult {
			return c.Processor.Process(ctx, agent, run.job, run.chunks[idx], Position{Index: idx, Total: len(run.chunks)})
		})
		if err != nil {
			return err
		}
		next := make([]int, 0, len(pending))
		for j, idx := range pending {
			res := out[j]
			res.Provider = name
			c.record(run, idx, name, res.Duration, res.Err)
			if res.Succeeded {
				run.results[idx] = res
				continue
			}
			noteFailure(errs, idx, name, res.Err)
			next = append(next, idx)
		}
		pending = next
	}
	if len(pending) > 0 {
		return errs[pending[0]]
	}
	return nil
}

func noteFailure(errs map[int]*AllProvidersFailedError, idx int, provider string, err error) {
	e, ok := errs[idx]
	if !ok {
		e = &AllProvidersFailedError{Chunk: idx}
		errs[idx] = e
	}
	e.Providers = append(e.Providers, provider)
	e.Errs = append(e.Errs, err)
}

// synthesize sends req along the chain until one provider answers.
func (c *Coordinator) synthesize(ctx context.Context, run *jobRun, req models.Request) (string, error) {
	var errs []error
	for _, name := range run.chain {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		agent, err := c.Agents.Get(ctx, name, run.modelFor(name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		start := time.Now()
		out, err := c.Processor.call(ctx, agent, req)
		c.record(run, -1, name, time.Since(start), err)
		if err == nil {
			return out, nil
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

func (c *Coordinator) record(run *jobRun, chunk int, provider string, d time.Duration, err error) {
	a := Attempt{Chunk: chunk, Provider: provider, Duration: d}
	if err != nil {
		a.Error = err.Error()
		run.log.Warn("provider attempt failed", "chunk", chunk, "provider", provider, "duration", d, "error", err)
	} else {
		run.log.Debug("provider attempt succeeded", "chunk", chunk, "provider", provider, "duration", d)
	}
	run.attempts = append(run.attempts, a)
}

// modelFor applies the job's model override to the requested provider only.
func (r *jobRun) modelFor(provider string) string {
	if provider == r.chain[0] {
		return r.job.Model
	}
	return ""
}
