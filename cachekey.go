package evolsynth

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/soundprediction/go-evolsynth/pkg/cache"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// GenerationKey returns the cache key of a pipeline run. Documents are
// compared by normalized content only, so order, metadata and whitespace
// differences map to the same key. The mode label keeps fast and standard
// results apart even though FastMode is part of the settings too.
func GenerationKey(docs []types.DocumentInput, settings types.GenerationSettings, model string) string {
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = normalizeContent(d.Content)
	}
	sort.Strings(contents)

	// Struct fields marshal in declaration order, which makes this canonical.
	settingsJSON, _ := json.Marshal(settings)

	parts := make([]string, 0, len(contents)+3)
	parts = append(parts, contents...)
	parts = append(parts, string(settingsJSON), settings.ModeLabel(), model)
	return cache.HashKey(cache.PrefixGeneration, parts...)
}

func normalizeContent(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// inlineSource labels a context passage returned by the consolidated call
// rather than extracted from a document.
const inlineSource = "generated"

// canonicalOrder sorts docs the way GenerationKey does and returns, for each
// canonical position, the caller's index of that document. Equal contents
// keep the caller's relative order.
func canonicalOrder(docs []types.DocumentInput) ([]types.DocumentInput, []int) {
	normalized := make([]string, len(docs))
	callerIndex := make([]int, len(docs))
	for i, d := range docs {
		normalized[i] = normalizeContent(d.Content)
		callerIndex[i] = i
	}
	sort.SliceStable(callerIndex, func(a, b int) bool {
		return normalized[callerIndex[a]] < normalized[callerIndex[b]]
	})

	ordered := make([]types.DocumentInput, len(docs))
	for pos, i := range callerIndex {
		ordered[pos] = docs[i]
	}
	return ordered, callerIndex
}

// localize rewrites the document references of a dataset built over the
// canonical order so they point into the caller's docs. Source labels are
// taken from the caller's documents, since metadata is not part of the key.
func localize(ds *types.Dataset, failures []types.StageFailure, docs []types.DocumentInput, callerIndex []int) {
	toCaller := func(pos int) (int, bool) {
		if pos < 0 || pos >= len(callerIndex) {
			return pos, false
		}
		return callerIndex[pos], true
	}

	for i := range ds.EvolvedQuestions {
		indices := ds.EvolvedQuestions[i].SourceDocumentIndices
		for j, pos := range indices {
			indices[j], _ = toCaller(pos)
		}
	}
	for i := range ds.QuestionContexts {
		snippets := ds.QuestionContexts[i].Contexts
		for j := range snippets {
			idx, ok := toCaller(snippets[j].DocumentIndex)
			snippets[j].DocumentIndex = idx
			if ok && snippets[j].Source != inlineSource {
				snippets[j].Source = docs[idx].SourceName(idx)
			}
		}
	}
	for i := range failures {
		if p := failures[i].DocumentIndex; p != nil {
			idx, _ := toCaller(*p)
			failures[i].DocumentIndex = types.DocIndex(idx)
		}
	}
}
