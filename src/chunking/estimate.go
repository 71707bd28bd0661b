package chunking

import (
	"strings"
	"unicode/utf8"
)

// Limits maps a provider name to the number of estimated tokens a single
// request may carry before the job has to be chunked.
type Limits map[string]int

// DefaultLimits sit well below each provider's real context window so the
// framing prompt and the response still fit.
var DefaultLimits = Limits{
	"openai":     8000,
	"anthropic":  12000,
	"perplexity": 6000,
	"deepseek":   6000,
	"gemini":     16000,
	"ollama":     3000,
}

// DefaultHeadroom is the share of a provider limit kept free for per-chunk
// framing (position statements, carried context).
const DefaultHeadroom = 0.1

var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
	"pplx":   "perplexity",
}

// NormalizeProvider lowercases a provider name and resolves known aliases.
func NormalizeProvider(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if alias, ok := providerAliases[p]; ok {
		return alias
	}
	return p
}

// Estimator decides whether texts fit a provider's safe processing size.
// The zero value uses DefaultLimits and DefaultHeadroom.
type Estimator struct {
	Limits   Limits
	Headroom float64
}

// NewEstimator returns an Estimator on DefaultLimits with overrides applied.
// Non-positive overrides are ignored.
func NewEstimator(overrides map[string]int) *Estimator {
	limits := make(Limits, len(DefaultLimits)+len(overrides))
	for k, v := range DefaultLimits {
		limits[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			limits[NormalizeProvider(k)] = v
		}
	}
	return &Estimator{Limits: limits, Headroom: DefaultHeadroom}
}

var defaultEstimator = &Estimator{}

// NeedsChunking reports whether the joined texts exceed the provider's
// threshold under DefaultLimits.
func NeedsChunking(provider string, texts ...string) bool {
	return defaultEstimator.NeedsChunking(provider, texts...)
}

// EstimateTokens approximates the token count of text. It takes the larger of
// a words-based (4 tokens per 3 words) and a characters-based (4 characters
// per token) estimate.
func EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	words := len(strings.Fields(text))
	byWords := (words*4 + 2) / 3
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	return max(byWords, byChars)
}

func (e *Estimator) limits() Limits {
	if e == nil || len(e.Limits) == 0 {
		return DefaultLimits
	}
	return e.Limits
}

// Limit returns the safe threshold for provider. Unknown providers get the
// smallest configured threshold.
func (e *Estimator) Limit(provider string) int {
	if n, ok := e.limits()[NormalizeProvider(provider)]; ok && n > 0 {
		return n
	}
	return e.smallest()
}

// MinLimit returns the smallest threshold across providers, so that a chunk
// sized for it fits every provider of a fallback chain.
func (e *Estimator) MinLimit(providers ...string) int {
	if len(providers) == 0 {
		return e.smallest()
	}
	limit := 0
	for _, p := range providers {
		if n := e.Limit(p); limit == 0 || n < limit {
			limit = n
		}
	}
	return limit
}

func (e *Estimator) smallest() int {
	smallest := 0
	for _, n := range e.limits() {
		if n > 0 && (smallest == 0 || n < smallest) {
			smallest = n
		}
	}
	return smallest
}

// NeedsChunking joins texts and reports whether their estimated token count
// exceeds the provider's threshold. Empty input never needs chunking; input
// that cannot be measured (invalid UTF-8) always does.
func (e *Estimator) NeedsChunking(provider string, texts ...string) bool {
	joined := strings.Join(texts, "\n\n")
	if strings.TrimSpace(joined) == "" {
		return false
	}
	if !utf8.ValidString(joined) {
		return true
	}
	return EstimateTokens(joined) > e.Limit(provider)
}

// ChunkBudget returns how many estimated tokens of target text a chunk may
// hold next to the fixed framing texts for every provider in providers. The
// budget never drops below a quarter of the smallest limit.
func (e *Estimator) ChunkBudget(providers []string, fixed ...string) int {
	limit := e.MinLimit(providers...)
	headroom := DefaultHeadroom
	if e != nil && e.Headroom > 0 && e.Headroom < 1 {
		headroom = e.Headroom
	}
	budget := int(float64(limit)*(1-headroom)) - EstimateTokens(strings.Join(fixed, "\n\n"))
	if floor := limit / 4; budget < floor {
		budget = floor
	}
	return budget
}
