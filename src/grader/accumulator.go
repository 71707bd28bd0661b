package grader

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Protocol-Lattice/go-grader/src/grade"
	"github.com/Protocol-Lattice/go-grader/src/logging"
	"github.com/Protocol-Lattice/go-grader/src/models"
	"github.com/Protocol-Lattice/go-grader/src/textclean"
)

// FailedChunkMarker precedes the original text of a chunk that could not be rewritten.
const FailedChunkMarker = "[Section %d could not be rewritten; the original text follows]"

// Synthesizer runs a synthesis request through the provider chain.
type Synthesizer func(ctx context.Context, req models.Request) (string, error)

// Accumulator merges per-chunk results into one FinalResult.
type Accumulator struct {
	// Synthesize, when set, is asked for one overall evaluation of a chunked
	// grading job. Its failure falls back to the deterministic merge.
	Synthesize Synthesizer
	Logger     logging.Logger
}

// Accumulate orders results by chunk index and merges them for job.Mode.
// Markup is stripped once from the merged text.
func (a *Accumulator) Accumulate(ctx context.Context, job Job, results []ChunkResult) FinalResult {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(x, y ChunkResult) int { return x.ChunkIndex - y.ChunkIndex })

	final := FinalResult{ID: job.ID, Mode: job.Mode, Chunks: len(ordered), Chunked: len(ordered) > 1}
	for _, r := range ordered {
		if !r.Succeeded {
			final.FailedChunks = append(final.FailedChunks, r.ChunkIndex)
		}
	}

	var text string
	if job.Mode == ModeGrade {
		text = a.accumulateGrades(ctx, job, ordered, &final)
	} else {
		text = accumulateRewrites(ordered)
	}
	final.Text = textclean.StripMarkup(text)
	return final
}

func (a *Accumulator) accumulateGrades(ctx context.Context, job Job, results []ChunkResult, final *FinalResult) string {
	if len(results) == 1 {
		out := results[0].Output
		if s, ok := grade.Overall(out); ok {
			final.Score = &s
			final.PerChunkScores = []grade.Score{s}
		} else if s, ok := grade.Aggregate(grade.Parse(out), job.MaxScore); ok {
			final.Score = &s
		}
		return out
	}

	var b strings.Builder
	partials := make([]string, 0, len(results))
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Part %d of %d\n%s", i+1, len(results), strings.TrimSpace(r.Output))
		partials = append(partials, r.Output)
		if s, ok := partScore(r.Output); ok {
			final.PerChunkScores = append(final.PerChunkScores, s)
		}
	}
	if s, ok := grade.Aggregate(final.PerChunkScores, job.MaxScore); ok {
		final.Score = &s
		fmt.Fprintf(&b, "\n\n%s", s)
	}
	merged := b.String()

	if a.Synthesize == nil {
		return merged
	}
	synth, err := a.Synthesize(ctx, synthesisRequest(job, partials))
	if err != nil {
		a.logger().Warn("grade synthesis failed, keeping merged feedback", "job", job.ID, "error", err)
		return merged
	}
	if s, ok := grade.Overall(synth); ok {
		final.Score = &s
	}
	return synth
}

// partScore is the overall score a part states, or the aggregate of its
// criterion scores when it states none.
func partScore(output string) (grade.Score, bool) {
	if s, ok := grade.Overall(output); ok {
		return s, true
	}
	return grade.Aggregate(grade.Parse(output), 0)
}

func (a *Accumulator) logger() logging.Logger {
	if a.Logger == nil {
		return logging.Nop{}
	}
	return a.Logger
}

var (
	leadingConnective  = regexp.MustCompile(`(?i)^\s*(?:\((?:continued|cont\.?)\)|continu(?:ed|ing)(?: from [^\n.:]*)?[.:…]+|\.{3}|…)[ \t]*\n?\s*`)
	trailingConnective = regexp.MustCompile(`(?i)\s*(?:\((?:to be continued|continued|cont\.?)\)|\[continued\]|to be continued[.…]*)\s*$`)
	firstSentence      = regexp.MustCompile(`^\s*([^\n.!?…]+[.!?…]+["'”’)]*)(?:\s+|$)`)
	lastSentence       = regexp.MustCompile(`(?:^|[.!?…]["'”’)]*\s+)([^\n.!?…]+[.!?…]+["'”’)]*)\s*$`)
	spaceRun           = regexp.MustCompile(`\s+`)
)

// accumulateRewrites joins rewritten chunks in order and smooths the seams.
func accumulateRewrites(results []ChunkResult) string {
	pieces := make([]string, 0, len(results))
	prevRewritten := false
	for _, r := range results {
		if !r.Succeeded {
			pieces = append(pieces, fmt.Sprintf(FailedChunkMarker, r.ChunkIndex+1)+"\n"+r.Source)
			prevRewritten = false
			continue
		}
		piece := strings.TrimSpace(r.Output)
		if len(pieces) > 0 && prevRewritten {
			prev := trailingConnective.ReplaceAllString(pieces[len(pieces)-1], "")
			pieces[len(pieces)-1] = prev
			piece = leadingConnective.ReplaceAllString(piece, "")
			piece = dropRepeatedSentence(prev, piece)
		}
		if piece == "" {
			continue
		}
		pieces = append(pieces, piece)
		prevRewritten = true
	}
	return strings.Join(pieces, "\n\n")
}

// dropRepeatedSentence removes the first sentence of next when it repeats the
// last sentence of prev.
func dropRepeatedSentence(prev, next string) string {
	last := lastSentence.FindStringSubmatch(prev)
	first := firstSentence.FindStringSubmatchIndex(next)
	if last == nil || first == nil {
		return next
	}
	if normalizeSentence(last[1]) != normalizeSentence(next[first[2]:first[3]]) {
		return next
	}
	return strings.TrimSpace(next[first[1]:])
}

func normalizeSentence(s string) string {
	return strings.ToLower(spaceRun.ReplaceAllString(strings.TrimSpace(s), " "))
}
