package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is used when a Chunker has no MaxSize set.
const DefaultMaxSize = 12000

// Measure reports the size of a piece of text in some unit.
type Measure func(string) int

// Runes measures text in characters.
func Runes(s string) int { return utf8.RuneCountInString(s) }

// Words measures text in whitespace-separated words.
func Words(s string) int { return len(strings.Fields(s)) }

// Tokens measures text in estimated tokens.
func Tokens(s string) int { return EstimateTokens(s) }

// Chunk is an exact slice of the original text: Content == text[Start:End].
type Chunk struct {
	Index   int
	Content string
	Start   int
	End     int
}

// Text returns the chunk content without boundary whitespace.
func (c Chunk) Text() string {
	return strings.TrimSpace(c.Content)
}

// Chunker splits text into ordered, gap-free chunks whose trimmed size stays
// within MaxSize. Paragraphs are kept whole when possible, then sentences,
// then words; a word is never cut.
type Chunker struct {
	MaxSize int
	Measure Measure
}

// ChunkText splits text into chunks of at most targetSize characters.
func ChunkText(text string, targetSize int) []Chunk {
	return Chunker{MaxSize: targetSize}.Split(text)
}

const (
	levelParagraph = iota
	levelSentence
	levelWord
)

var breaks = [...]*regexp.Regexp{
	levelParagraph: regexp.MustCompile(`\n[ \t\r]*\n\s*`),
	levelSentence:  regexp.MustCompile(`[.!?…]+["'”’)\]]*\s+`),
	levelWord:      regexp.MustCompile(`\s+`),
}

// Split returns the chunks of text. Whitespace-only text yields no chunks.
func (c Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	p := packer{text: text, max: c.MaxSize, measure: c.Measure}
	if p.max <= 0 {
		p.max = DefaultMaxSize
	}
	if p.measure == nil {
		p.measure = Runes
	}
	p.pack(segments(text, 0, len(text), breaks[levelParagraph]), levelParagraph)
	p.flush()
	return p.chunks
}

type span struct {
	start, end int
}

// segments cuts text[a:b] after every match of re. Cuts that would leave a
// whitespace-only unit are skipped, and a whitespace-only remainder is folded
// into the last unit, so the units always cover [a, b) exactly.
func segments(text string, a, b int, re *regexp.Regexp) []span {
	var out []span
	start := a
	for _, m := range re.FindAllStringIndex(text[a:b], -1) {
		end := a + m[1]
		if strings.TrimSpace(text[start:end]) == "" {
			continue
		}
		out = append(out, span{start, end})
		start = end
	}
	if start < b {
		if strings.TrimSpace(text[start:b]) == "" && len(out) > 0 {
			out[len(out)-1].end = b
		} else {
			out = append(out, span{start, b})
		}
	}
	return out
}

type packer struct {
	text    string
	max     int
	measure Measure

	chunks     []Chunk
	start, end int
	open       bool
}

func (p *packer) size(a, b int) int {
	return p.measure(strings.TrimSpace(p.text[a:b]))
}

func (p *packer) pack(units []span, level int) {
	for _, u := range units {
		if p.open && p.size(p.start, u.end) <= p.max {
			p.end = u.end
			continue
		}
		if level < levelWord && p.size(u.start, u.end) > p.max {
			p.flush()
			p.pack(segments(p.text, u.start, u.end, breaks[level+1]), level+1)
			continue
		}
		p.flush()
		p.start, p.end, p.open = u.start, u.end, true
	}
}

func (p *packer) flush() {
	if !p.open {
		return
	}
	p.chunks = append(p.chunks, Chunk{
		Index:   len(p.chunks),
		Content: p.text[p.start:p.end],
		Start:   p.start,
		End:     p.end,
	})
	p.open = false
}

// Reassemble concatenates chunk contents in slice order.
func Reassemble(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Content)
	}
	return b.String()
}

// Verify checks that chunks are ordered, contiguous and reproduce text.
func Verify(text string, chunks []Chunk) error {
	pos := 0
	for i, c := range chunks {
		switch {
		case c.Index != i:
			return &ChunkBoundaryError{Index: i, Reason: "index out of order"}
		case c.Start != pos:
			return &ChunkBoundaryError{Index: i, Reason: "gap or overlap with previous chunk"}
		case c.End < c.Start || c.End > len(text):
			return &ChunkBoundaryError{Index: i, Reason: "offsets out of range"}
		case text[c.Start:c.End] != c.Content:
			return &ChunkBoundaryError{Index: i, Reason: "content does not match offsets"}
		}
		pos = c.End
	}
	if strings.TrimSpace(text[pos:]) != "" {
		return &ChunkBoundaryError{Index: len(chunks), Reason: "trailing text not covered"}
	}
	return nil
}
