package documents

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 50
)

// separators are tried from the largest semantic unit to the smallest.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " "}

// Chunker splits long documents into overlapping pieces of at most Size runes.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker, replacing invalid parameters with defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split returns the chunks of text.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.merge(c.pieces(text, separators))
}

// SplitDocument chunks doc, copying its metadata and adding chunk_index and chunk_count.
func (c *Chunker) SplitDocument(doc types.DocumentInput, index int) []types.DocumentInput {
	parts := c.Split(doc.Content)
	out := make([]types.DocumentInput, len(parts))
	for i, p := range parts {
		meta := make(map[string]interface{}, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta["chunk_index"] = i
		meta["chunk_count"] = len(parts)
		out[i] = types.DocumentInput{
			Content:  p,
			Metadata: meta,
			Source:   doc.SourceName(index),
		}
	}
	return out
}

// SplitDocuments chunks every document in order.
func (c *Chunker) SplitDocuments(docs []types.DocumentInput) []types.DocumentInput {
	var out []types.DocumentInput
	for i, d := range docs {
		out = append(out, c.SplitDocument(d, i)...)
	}
	return out
}

// pieces breaks text into parts no longer than Size, keeping separators
// attached to the end of the preceding part.
func (c *Chunker) pieces(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= c.Size {
		return []string{text}
	}

	for i, sep := range seps {
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, part := range strings.SplitAfter(text, sep) {
			if part == "" {
				continue
			}
			if utf8.RuneCountInString(part) > c.Size {
				out = append(out, c.pieces(part, seps[i+1:])...)
			} else {
				out = append(out, part)
			}
		}
		return out
	}

	// No separator left: hard split by runes.
	var out []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += c.Size {
		end := min(start+c.Size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// merge packs pieces into chunks, starting each new chunk with up to Overlap
// runes from the end of the previous one.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	emit := func() string {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		currentLen = 0
		return chunk
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if currentLen > 0 && currentLen+n > c.Size {
			prev := emit()
			if tail := overlapTail(prev, c.Overlap); tail != "" && utf8.RuneCountInString(tail)+1+n <= c.Size {
				current.WriteString(tail)
				current.WriteString(" ")
				currentLen = utf8.RuneCountInString(tail) + 1
			}
		}
		current.WriteString(p)
		currentLen += n
	}
	emit()
	return chunks
}

// overlapTail returns at most n runes from the end of s, starting at a word boundary.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return ""
	}
	start := len(runes) - n
	for start < len(runes) && !unicode.IsSpace(runes[start-1]) {
		start++
	}
	return strings.TrimSpace(string(runes[start:]))
}
