package retrieval

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// Default extraction parameters.
const (
	DefaultTopSentences  = 3
	DefaultMaxChars      = 1500
	DefaultFallbackChars = 500
	DefaultTopDocuments  = 2

	// Key terms shorter than this must match a whole sentence token; longer
	// terms match as substrings so inflected forms still count.
	substringMinRunes = 4
)

// Config controls snippet selection.
type Config struct {
	TopSentences  int `json:"top_sentences" mapstructure:"top_sentences"`
	MaxChars      int `json:"max_chars" mapstructure:"max_chars"`
	FallbackChars int `json:"fallback_chars" mapstructure:"fallback_chars"`
	TopDocuments  int `json:"top_documents" mapstructure:"top_documents"`
}

// DefaultConfig returns the default extraction parameters.
func DefaultConfig() Config {
	return Config{
		TopSentences:  DefaultTopSentences,
		MaxChars:      DefaultMaxChars,
		FallbackChars: DefaultFallbackChars,
		TopDocuments:  DefaultTopDocuments,
	}
}

// Extractor selects the sentences of a document most relevant to a question.
// It performs no I/O and its output depends only on its inputs.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an extractor. Non-positive fields take their defaults.
func NewExtractor(cfg Config) *Extractor {
	d := DefaultConfig()
	if cfg.TopSentences <= 0 {
		cfg.TopSentences = d.TopSentences
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = d.MaxChars
	}
	if cfg.FallbackChars <= 0 {
		cfg.FallbackChars = d.FallbackChars
	}
	if cfg.FallbackChars > cfg.MaxChars {
		cfg.FallbackChars = cfg.MaxChars
	}
	if cfg.TopDocuments <= 0 {
		cfg.TopDocuments = d.TopDocuments
	}
	return &Extractor{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// ExtractForQuestion builds one snippet per document and keeps the top-K by score.
// Documents with no matching sentence are dropped unless no document matched at all.
func (e *Extractor) ExtractForQuestion(question string, docs []types.DocumentInput) []types.ContextSnippet {
	terms := KeyTerms(question)

	snippets := make([]types.ContextSnippet, 0, len(docs))
	anyMatch := false
	for i, doc := range docs {
		s := e.extract(terms, doc, i)
		if s.Score > 0 {
			anyMatch = true
		}
		snippets = append(snippets, s)
	}

	if anyMatch {
		kept := snippets[:0]
		for _, s := range snippets {
			if s.Score > 0 {
				kept = append(kept, s)
			}
		}
		snippets = kept
	}

	sort.SliceStable(snippets, func(a, b int) bool {
		return snippets[a].Score > snippets[b].Score
	})
	if len(snippets) > e.cfg.TopDocuments {
		snippets = snippets[:e.cfg.TopDocuments]
	}
	return snippets
}

// Extract builds the snippet of a single document for question.
func (e *Extractor) Extract(question string, doc types.DocumentInput, index int) types.ContextSnippet {
	return e.extract(KeyTerms(question), doc, index)
}

func (e *Extractor) extract(terms []string, doc types.DocumentInput, index int) types.ContextSnippet {
	snippet := types.ContextSnippet{
		Source:        doc.SourceName(index),
		DocumentIndex: index,
	}

	sentences := SplitSentences(doc.Content)
	scores := make([]int, len(sentences))
	for i, s := range sentences {
		scores[i] = scoreSentence(s, terms)
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	var picked []int
	total := 0
	for _, idx := range order {
		if len(picked) == e.cfg.TopSentences || scores[idx] == 0 {
			break
		}
		picked = append(picked, idx)
		total += scores[idx]
	}

	if len(picked) == 0 {
		snippet.Text = Truncate(collapseSpace(doc.Content), e.cfg.FallbackChars)
		return snippet
	}

	// Restore document order before joining.
	sort.Ints(picked)
	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = sentences[idx]
	}
	snippet.Text = Truncate(strings.Join(parts, " "), e.cfg.MaxChars)
	snippet.Score = total
	return snippet
}

// KeyTerms returns the distinct lower-cased question tokens that are not stop
// words, in order of first appearance.
func KeyTerms(question string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range tokenize(question) {
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// scoreSentence counts the distinct key terms present in sentence.
func scoreSentence(sentence string, terms []string) int {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(sentence)
	var tokens map[string]struct{}

	score := 0
	for _, term := range terms {
		if utf8.RuneCountInString(term) >= substringMinRunes {
			if strings.Contains(lower, term) {
				score++
			}
			continue
		}
		if tokens == nil {
			tokens = make(map[string]struct{})
			for _, tok := range tokenize(lower) {
				tokens[tok] = struct{}{}
			}
		}
		if _, ok := tokens[term]; ok {
			score++
		}
	}
	return score
}

// SplitSentences splits text on terminal punctuation followed by whitespace and
// on blank lines. Whitespace inside each sentence is collapsed.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	emit := func(end int) {
		if s := collapseSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '.' || r == '!' || r == '?':
			j := i + 1
			for j < len(runes) && isCloser(runes[j]) {
				j++
			}
			if j == len(runes) || unicode.IsSpace(runes[j]) {
				emit(j)
				i = j - 1
			}
		case r == '\n':
			j := i + 1
			for j < len(runes) && runes[j] != '\n' && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && runes[j] == '\n' {
				emit(i)
				i = j
			}
		}
	}
	if start < len(runes) {
		emit(len(runes))
	}
	return sentences
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// Truncate shortens text to at most maxChars runes. It cuts after the last
// sentence terminator inside the budget, else at the last whitespace, and only
// splits a word when the budget holds no whitespace at all.
func Truncate(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}

	cut := runes[:maxChars]
	nextIsSpace := unicode.IsSpace(runes[maxChars])

	for i := len(cut) - 1; i > 0; i-- {
		if cut[i] != '.' && cut[i] != '!' && cut[i] != '?' {
			continue
		}
		if i == len(cut)-1 {
			if nextIsSpace {
				return string(cut)
			}
			continue
		}
		if unicode.IsSpace(cut[i+1]) {
			return string(cut[:i+1])
		}
	}

	if nextIsSpace {
		return strings.TrimRightFunc(string(cut), unicode.IsSpace)
	}
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			return strings.TrimRightFunc(string(cut[:i]), unicode.IsSpace)
		}
	}
	return string(cut)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {}, "and": {}, "any": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "before": {}, "between": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "describe": {}, "did": {}, "do": {}, "does": {}, "each": {},
	"explain": {}, "for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "how": {}, "if": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "may": {}, "might": {}, "more": {},
	"most": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "other": {}, "should": {},
	"so": {}, "some": {}, "such": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {}, "to": {}, "was": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {}, "whom": {},
	"why": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}
