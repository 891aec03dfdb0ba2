package retrieval_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/soundprediction/go-evolsynth/pkg/retrieval"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goDoc = `Go is a statically typed language designed at Google.
Goroutines are lightweight threads managed by the Go runtime. Channels let goroutines communicate safely.

The garbage collector runs concurrently with the program. Modules record dependency versions in go.mod.
Interfaces are satisfied implicitly.`

func TestKeyTerms(t *testing.T) {
	terms := retrieval.KeyTerms("How do goroutines and channels communicate in Go? Goroutines!")
	assert.Equal(t, []string{"goroutines", "channels", "communicate", "go"}, terms)

	assert.Empty(t, retrieval.KeyTerms("What is it?"))
}

func TestSplitSentences(t *testing.T) {
	sentences := retrieval.SplitSentences(goDoc)
	require.Len(t, sentences, 6)
	assert.Equal(t, "Go is a statically typed language designed at Google.", sentences[0])
	assert.Equal(t, "Modules record dependency versions in go.mod.", sentences[4])
	assert.Equal(t, "Interfaces are satisfied implicitly.", sentences[5])

	paragraphs := retrieval.SplitSentences("Heading without stop\n\nBody sentence here")
	assert.Equal(t, []string{"Heading without stop", "Body sentence here"}, paragraphs)
}

func TestExtractSelectsRelevantSentencesInDocumentOrder(t *testing.T) {
	ex := retrieval.NewExtractor(retrieval.Config{TopSentences: 2})
	doc := types.DocumentInput{Content: goDoc, Source: "go.md"}

	snippet := ex.Extract("How do channels let goroutines communicate?", doc, 0)
	assert.Equal(t, "Goroutines are lightweight threads managed by the Go runtime. Channels let goroutines communicate safely.", snippet.Text)
	assert.Equal(t, "go.md", snippet.Source)
	assert.Equal(t, 0, snippet.DocumentIndex)
	assert.Equal(t, 5, snippet.Score)
}

func TestExtractFallsBackToDocumentPrefix(t *testing.T) {
	ex := retrieval.NewExtractor(retrieval.Config{FallbackChars: 40})
	doc := types.DocumentInput{Content: goDoc}

	snippet := ex.Extract("Which vintage wines pair with cheese?", doc, 3)
	assert.Equal(t, 0, snippet.Score)
	assert.Equal(t, "document_3", snippet.Source)
	assert.True(t, strings.HasPrefix(goDoc, snippet.Text))
	assert.LessOrEqual(t, utf8.RuneCountInString(snippet.Text), 40)
	assert.NotEmpty(t, snippet.Text)
}

func TestExtractIsDeterministic(t *testing.T) {
	ex := retrieval.NewExtractor(retrieval.DefaultConfig())
	docs := []types.DocumentInput{{Content: goDoc}, {Content: "Channels are typed conduits. Select waits on channels."}}

	first := ex.ExtractForQuestion("Why use channels with goroutines?", docs)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ex.ExtractForQuestion("Why use channels with goroutines?", docs))
	}
}

func TestExtractForQuestionKeepsTopDocuments(t *testing.T) {
	ex := retrieval.NewExtractor(retrieval.Config{TopDocuments: 2})
	docs := []types.DocumentInput{
		{Content: "Bread needs flour and water.", Source: "bread"},
		{Content: "Channels connect goroutines.", Source: "weak"},
		{Content: goDoc, Source: "strong"},
	}

	snippets := ex.ExtractForQuestion("How do channels let goroutines communicate?", docs)
	require.Len(t, snippets, 2)
	assert.Equal(t, "strong", snippets[0].Source)
	assert.Equal(t, "weak", snippets[1].Source)
	assert.GreaterOrEqual(t, snippets[0].Score, snippets[1].Score)

	// Nothing matches: fall back to the leading documents.
	fallback := ex.ExtractForQuestion("Which vintage wines pair with cheese?", docs)
	require.Len(t, fallback, 2)
	assert.Equal(t, "bread", fallback[0].Source)
	assert.Equal(t, 0, fallback[0].Score)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{name: "fits", text: "Short text.", max: 50, want: "Short text."},
		{name: "sentence boundary", text: "First one. Second sentence is long.", max: 20, want: "First one."},
		{name: "word boundary", text: "alpha beta gamma delta", max: 13, want: "alpha beta"},
		{name: "cut lands on space", text: "alpha beta gamma", max: 10, want: "alpha beta"},
		{name: "terminator at budget edge", text: "One. Two. Three", max: 9, want: "One. Two."},
		{name: "decimal is not a boundary", text: "Pi is 3.14159 roughly", max: 10, want: "Pi is"},
		{name: "single long token", text: "abcdefghij", max: 4, want: "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retrieval.Truncate(tt.text, tt.max))
		})
	}
}

func TestSnippetsRespectBudgetAndWordBoundaries(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "Sentence %d mentions goroutines and schedulers in detail number %d. ", i, i*7)
	}
	doc := types.DocumentInput{Content: b.String()}
	source := strings.Join(strings.Fields(doc.Content), " ")

	for _, budget := range []int{37, 64, 100, 333, 512, 1500} {
		ex := retrieval.NewExtractor(retrieval.Config{TopSentences: 50, MaxChars: budget, FallbackChars: budget})
		for _, q := range []string{"What do goroutines and schedulers do?", "Unrelated pottery glaze?"} {
			snippet := ex.Extract(q, doc, 0)
			text := snippet.Text
			require.NotEmpty(t, text)
			assert.LessOrEqual(t, utf8.RuneCountInString(text), budget)

			// The snippet never ends part-way through a word of the source text.
			idx := strings.Index(source, text)
			require.GreaterOrEqual(t, idx, 0, "snippet must be a span of the source")
			end := idx + len(text)
			if end < len(source) {
				next, _ := utf8.DecodeRuneInString(source[end:])
				assert.True(t, unicode.IsSpace(next), "budget %d: cut mid-word before %q", budget, next)
			}
		}
	}
}
