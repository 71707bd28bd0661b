package grader

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Protocol-Lattice/go-grader/src/chunking"
	"github.com/Protocol-Lattice/go-grader/src/models"
)

var partPattern = regexp.MustCompile(`part (\d+) of (\d+)`)

// partOf returns the 1-based part a request frames, or 0 for a direct request.
func partOf(req models.Request) int {
	m := partPattern.FindStringSubmatch(req.Prompt())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

type fakeAgent struct {
	name    string
	failAll bool
	fail    map[int]bool
	reply   func(part int, req models.Request) string
	delay   func(part int) time.Duration
	onCall  func()

	mu        sync.Mutex
	reqs      []models.Request
	completed int
}

func (f *fakeAgent) Name() string { return f.name }

func (f *fakeAgent) Generate(ctx context.Context, req models.Request) (string, error) {
	part := partOf(req)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	if f.delay != nil {
		select {
		case <-time.After(f.delay(part)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	f.completed++
	f.mu.Unlock()
	if f.failAll || f.fail[part] {
		return "", fmt.Errorf("%s unavailable", f.name)
	}
	if f.reply != nil {
		return f.reply(part, req), nil
	}
	return fmt.Sprintf("Feedback on part %d.\nScore: %d/10", part, 6+part), nil
}

func (f *fakeAgent) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeAgent) requests() []models.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Request(nil), f.reqs...)
}

type fakeResolver map[string]models.Agent

func (r fakeResolver) Get(_ context.Context, name, _ string) (models.Agent, error) {
	a, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownProvider, name)
	}
	return a, nil
}

// threeParagraphs fits one paragraph per chunk under a 300-token window.
func threeParagraphs() (string, []string) {
	paras := make([]string, 0, 3)
	for _, w := range []string{"amber", "brook", "cedar"} {
		paras = append(paras, strings.TrimSpace(strings.Repeat(w+" ", 90)))
	}
	return strings.Join(paras, "\n\n"), paras
}

func newTestCoordinator(agents fakeResolver, limits map[string]int, opts ...Option) *Coordinator {
	base := []Option{
		WithEstimator(chunking.NewEstimator(limits)),
		WithMaxDepth(0),
		WithCallTimeout(time.Second),
	}
	return NewCoordinator(agents, append(base, opts...)...)
}

func smallWindow() map[string]int {
	return map[string]int{"primary": 300, "fallback": 300, "tertiary": 300}
}
