package chunking

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var vocabulary = []string{
	"the", "essay", "argues", "that", "photosynthesis", "is", "a", "process",
	"however,", "students", "often", "misread", "evidence", "from", "primary",
	"sources", "internationalization", "of", "curricula", "matters", "e.g.",
}

func randomDocument(r *rand.Rand) string {
	var b strings.Builder
	paragraphs := 1 + r.Intn(8)
	for p := 0; p < paragraphs; p++ {
		if p > 0 {
			b.WriteString([]string{"\n\n", "\n \n", "\r\n\r\n", "\n\n\n  "}[r.Intn(4)])
		}
		sentences := 1 + r.Intn(6)
		for s := 0; s < sentences; s++ {
			if s > 0 {
				b.WriteString([]string{" ", "  ", "\n"}[r.Intn(3)])
			}
			words := 1 + r.Intn(25)
			for w := 0; w < words; w++ {
				if w > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(vocabulary[r.Intn(len(vocabulary))])
			}
			b.WriteString([]string{".", "!", "?", "\"."}[r.Intn(4)])
		}
	}
	return b.String()
}

func TestChunkerReconstructsRandomDocuments(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	sizes := []int{1, 5, 17, 40, 120, 1000, 100000}
	for i := 0; i < 200; i++ {
		text := randomDocument(r)
		for _, size := range sizes {
			chunks := ChunkText(text, size)
			if err := Verify(text, chunks); err != nil {
				t.Fatalf("doc %d size %d: %v", i, size, err)
			}
			if got := Reassemble(chunks); got != text {
				t.Fatalf("doc %d size %d: reassembled text differs", i, size)
			}
		}
	}
}

func TestChunkerRespectsSizeBound(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		text := randomDocument(r)
		for _, size := range []int{10, 33, 80, 250} {
			for _, c := range ChunkText(text, size) {
				content := c.Text()
				if Runes(content) > size && len(strings.Fields(content)) > 1 {
					t.Fatalf("doc %d size %d: chunk %d has %d runes: %q", i, size, c.Index, Runes(content), content)
				}
			}
		}
	}
}

func TestChunkerSingleChunkWhenTextFits(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph."
	chunks := ChunkText(text, 1000)
	require.Len(t, chunks, 1)
	require.Equal(t, Chunk{Index: 0, Content: text, Start: 0, End: len(text)}, chunks[0])
}

func TestChunkerWhitespaceOnly(t *testing.T) {
	if chunks := ChunkText(" \n\n\t ", 10); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
	if err := Verify(" \n ", nil); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
}

func TestChunkerPrefersParagraphBoundaries(t *testing.T) {
	text := "Alpha beta gamma.\n\nDelta epsilon zeta.\n\nEta theta iota."
	chunks := ChunkText(text, 40)
	require.Len(t, chunks, 2)
	require.Equal(t, "Alpha beta gamma.\n\nDelta epsilon zeta.", chunks[0].Text())
	require.Equal(t, "Eta theta iota.", chunks[1].Text())
}

func TestChunkerFallsBackToSentences(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine."
	chunks := Chunker{MaxSize: 6, Measure: Words}.Split(text)
	require.Len(t, chunks, 2)
	require.Equal(t, "One two three. Four five six.", chunks[0].Text())
	require.Equal(t, "Seven eight nine.", chunks[1].Text())
}

func TestChunkerHardCutsAtWordBoundary(t *testing.T) {
	text := "supercalifragilistic expialidocious is a word"
	chunks := ChunkText(text, 12)
	require.NoError(t, Verify(text, chunks))
	for _, c := range chunks {
		for _, w := range strings.Fields(c.Content) {
			if !strings.Contains(text, " "+w) && !strings.HasPrefix(text, w) {
				t.Fatalf("word %q was cut", w)
			}
		}
	}
	require.Equal(t, "supercalifragilistic", chunks[0].Text())
	require.Equal(t, "expialidocious", chunks[1].Text())
}

func TestChunkerLargeDocumentWordBudget(t *testing.T) {
	var b strings.Builder
	const total, perParagraph = 50000, 120
	for i := 0; i < total; i++ {
		if i > 0 {
			if i%perParagraph == 0 {
				b.WriteString(".\n\n")
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(fmt.Sprintf("w%d", i%97))
	}
	text := b.String()

	est := &Estimator{Limits: Limits{"test": 4000}}
	require.True(t, est.NeedsChunking("test", text))

	chunks := Chunker{MaxSize: 3000, Measure: Words}.Split(text)
	require.GreaterOrEqual(t, len(chunks), 17)
	for _, c := range chunks {
		require.LessOrEqual(t, Words(c.Content), 3000)
	}
	require.NoError(t, Verify(text, chunks))
}

func TestVerifyDetectsBrokenChunks(t *testing.T) {
	text := "abc def ghi"
	chunks := ChunkText(text, 4)
	require.NoError(t, Verify(text, chunks))

	dropped := append([]Chunk(nil), chunks[1:]...)
	var boundaryErr *ChunkBoundaryError
	require.ErrorAs(t, Verify(text, dropped), &boundaryErr)

	tampered := append([]Chunk(nil), chunks...)
	tampered[0].Content = "xyz "
	require.ErrorAs(t, Verify(text, tampered), &boundaryErr)
}
