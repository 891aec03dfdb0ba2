package documents_test

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/soundprediction/go-evolsynth/pkg/documents"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about goroutines and channels. ", i)
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func TestChunkerRespectsSizeAndCoversText(t *testing.T) {
	text := longText(80)
	c := documents.NewChunker(300, 40)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 300)
		assert.NotEmpty(t, chunk)
	}

	joined := strings.Join(chunks, " ")
	for i := 0; i < 80; i++ {
		assert.Contains(t, joined, fmt.Sprintf("Sentence number %d talks", i))
	}
}

func TestChunkerOverlap(t *testing.T) {
	c := documents.NewChunker(130, 60)
	chunks := c.Split(longText(10))
	require.Greater(t, len(chunks), 1)

	sentence := regexp.MustCompile(`Sentence number \d+ `)
	for i := 1; i < len(chunks); i++ {
		prev := sentence.FindAllString(chunks[i-1], -1)
		require.NotEmpty(t, prev)
		assert.True(t, strings.HasPrefix(chunks[i], prev[len(prev)-1]),
			"chunk %d should start with the last sentence of chunk %d", i, i-1)
	}
}

func TestChunkerShortAndEmptyText(t *testing.T) {
	c := documents.NewChunker(0, -1)
	assert.Equal(t, documents.DefaultChunkSize, c.Size)
	assert.Equal(t, documents.DefaultChunkOverlap, c.Overlap)

	assert.Equal(t, []string{"Short text."}, c.Split("  Short text. "))
	assert.Nil(t, c.Split("   "))

	hard := documents.NewChunker(4, 0).Split("abcdefghij")
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, hard)
}

func TestSplitDocumentCopiesMetadata(t *testing.T) {
	doc := types.DocumentInput{Content: longText(20), Metadata: map[string]interface{}{"lang": "en"}}
	parts := documents.NewChunker(200, 20).SplitDocument(doc, 2)
	require.Greater(t, len(parts), 1)

	for i, p := range parts {
		assert.Equal(t, "document_2", p.Source)
		assert.Equal(t, "en", p.Metadata["lang"])
		assert.Equal(t, i, p.Metadata["chunk_index"])
		assert.Equal(t, len(parts), p.Metadata["chunk_count"])
	}
	_, touched := doc.Metadata["chunk_index"]
	assert.False(t, touched)
}

func TestLoadFilesAndDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# Title\n\nBody text."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Plain text.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pdf"), []byte("%PDF"), 0o644))

	docs, err := documents.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Source)
	assert.Equal(t, "Plain text.", docs[0].Content)
	assert.Equal(t, "md", docs[1].Metadata["format"])

	_, err = documents.LoadFiles([]string{filepath.Join(dir, "c.pdf"), filepath.Join(dir, "missing.txt")})
	assert.ErrorIs(t, err, documents.ErrUnsupportedFormat)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBase64(t *testing.T) {
	docs, err := documents.LoadBase64([]documents.EncodedFile{
		{Filename: "notes.txt", Content: base64.StdEncoding.EncodeToString([]byte("Uploaded notes."))},
		{Filename: "bad.txt", Content: "!!!"},
		{Filename: "image.png", Content: ""},
	})
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.txt", docs[0].Source)
	assert.Equal(t, "base64", docs[0].Metadata["loaded_from"])
	require.Error(t, err)
	assert.ErrorIs(t, err, documents.ErrUnsupportedFormat)
}

func TestSummarizeAndSamples(t *testing.T) {
	samples := documents.SampleDocuments()
	require.Len(t, samples, 3)
	require.NoError(t, types.ValidateDocuments(samples, 0))

	s := documents.Summarize(samples)
	assert.Equal(t, 3, s.TotalDocuments)
	assert.Len(t, s.Sources, 3)
	assert.Greater(t, s.AverageCharacters, 100.0)
}
