package prompts

import (
	"fmt"
	"strings"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// EvolutionPrompt defines the interface for question evolution prompts.
type EvolutionPrompt interface {
	Simple() PromptVersion
	MultiContext() PromptVersion
	Reasoning() PromptVersion
	Complex() PromptVersion
	Consolidated() PromptVersion
	ForType(t types.EvolutionType) (PromptVersion, bool)
}

// EvolutionVersions holds all versions of evolution prompts.
type EvolutionVersions struct {
	SimplePrompt       PromptVersion
	MultiContextPrompt PromptVersion
	ReasoningPrompt    PromptVersion
	ComplexPrompt      PromptVersion
	ConsolidatedPrompt PromptVersion
}

func (e *EvolutionVersions) Simple() PromptVersion       { return e.SimplePrompt }
func (e *EvolutionVersions) MultiContext() PromptVersion { return e.MultiContextPrompt }
func (e *EvolutionVersions) Reasoning() PromptVersion    { return e.ReasoningPrompt }
func (e *EvolutionVersions) Complex() PromptVersion      { return e.ComplexPrompt }
func (e *EvolutionVersions) Consolidated() PromptVersion { return e.ConsolidatedPrompt }

// ForType returns the per-type prompt for t.
func (e *EvolutionVersions) ForType(t types.EvolutionType) (PromptVersion, bool) {
	switch t {
	case types.EvolutionSimple:
		return e.SimplePrompt, true
	case types.EvolutionMultiContext:
		return e.MultiContextPrompt, true
	case types.EvolutionReasoning:
		return e.ReasoningPrompt, true
	case types.EvolutionComplex:
		return e.ComplexPrompt, true
	default:
		return nil, false
	}
}

// evolutionProfile describes one per-type evolution prompt.
type evolutionProfile struct {
	role     string
	task     string
	criteria []string
}

var evolutionProfiles = map[types.EvolutionType]evolutionProfile{
	types.EvolutionSimple: {
		role: "You are an expert at evolving questions to make them more complex while maintaining their essence.",
		task: "Rewrite base questions into more demanding versions.",
		criteria: []string{
			"Require deeper understanding of the content",
			"Be more specific and detailed",
			"Still be answerable from the given context",
		},
	},
	types.EvolutionMultiContext: {
		role: "You are an expert at creating questions that require information from multiple sources.",
		task: "Create questions that require synthesizing information from several of the contexts.",
		criteria: []string{
			"Require information from at least 2 different contexts",
			"Ask for comparison, relationship, or synthesis",
			"Be more complex than the original question",
		},
	},
	types.EvolutionReasoning: {
		role: "You are an expert at creating questions that require multi-step reasoning.",
		task: "Create questions that require logical reasoning, inference, or multi-step thinking.",
		criteria: []string{
			"Require the reader to make logical connections",
			"Involve cause-and-effect relationships or implications",
			"Require step-by-step reasoning to answer",
		},
	},
	types.EvolutionComplex: {
		role: "You are an expert at creating advanced analytical questions.",
		task: "Create questions that combine several facts from the contexts with analysis or evaluation.",
		criteria: []string{
			"Combine multiple facts, constraints, or perspectives",
			"Require analysis, evaluation, or a justified judgement",
			"Remain answerable from the given contexts alone",
		},
	},
}

func evolutionPrompt(t types.EvolutionType) PromptFunction {
	profile := evolutionProfiles[t]
	return func(context map[string]interface{}) ([]llm.Message, error) {
		seeds, err := requireStrings(context, "seeds")
		if err != nil {
			return nil, err
		}
		contexts, _ := context["contexts"].([]string)
		count := intValue(context, "count", 1)

		var criteria strings.Builder
		for i, c := range profile.criteria {
			fmt.Fprintf(&criteria, "%d. %s\n", i+1, c)
		}

		userPrompt := fmt.Sprintf(`
<CONTEXTS>
%s
</CONTEXTS>

<BASE QUESTIONS>
%s
</BASE QUESTIONS>

%s
Produce exactly %d evolved question(s). Base evolved question k on base question k, wrapping around
when there are fewer base questions than requested.

Each evolved question should:
%s
Return only a numbered list, one question per line, each ending with a question mark:
1. <question>
`, labeledContexts(contexts), numbered(seeds), profile.task, count, criteria.String())

		return llm.Exchange(profile.role, userPrompt), nil
	}
}

// consolidatedEvolution requests every evolution type in a single call.
// Context keys: seeds ([]string), contexts ([]string), counts (map[types.EvolutionType]int).
func consolidatedEvolution(context map[string]interface{}) ([]llm.Message, error) {
	seeds, err := requireStrings(context, "seeds")
	if err != nil {
		return nil, err
	}
	contexts, _ := context["contexts"].([]string)
	counts, ok := context["counts"].(map[types.EvolutionType]int)
	if !ok || len(counts) == 0 {
		return nil, fmt.Errorf("prompt context is missing %q", "counts")
	}

	var plan strings.Builder
	for _, t := range types.EvolutionTypes {
		if n := counts[t]; n > 0 {
			fmt.Fprintf(&plan, "- %s: %d question(s). %s\n", t, n, evolutionProfiles[t].task)
		}
	}
	if plan.Len() == 0 {
		return nil, fmt.Errorf("prompt context %q requests no questions", "counts")
	}

	sysPrompt := `You are an expert at building question/answer evaluation datasets from source documents.
You evolve simple questions into harder ones and answer them using only the supplied contexts.`

	userPrompt := fmt.Sprintf(`
<CONTEXTS>
%s
</CONTEXTS>

<BASE QUESTIONS>
%s
</BASE QUESTIONS>

Generate the following evolved questions:
%s
Answer every question strictly from the contexts and quote the supporting passage.
Use exactly this format for every item and separate items with a line containing only ---:

[evolution_type]
QUESTION: <the evolved question>
ANSWER: <the answer>
CONTEXT: <the supporting passage>
---
`, labeledContexts(contexts), numbered(seeds), plan.String())

	return llm.Exchange(sysPrompt, userPrompt), nil
}

// NewEvolutionVersions creates a new EvolutionVersions instance.
func NewEvolutionVersions() *EvolutionVersions {
	return &EvolutionVersions{
		SimplePrompt:       NewPromptVersion(evolutionPrompt(types.EvolutionSimple)),
		MultiContextPrompt: NewPromptVersion(evolutionPrompt(types.EvolutionMultiContext)),
		ReasoningPrompt:    NewPromptVersion(evolutionPrompt(types.EvolutionReasoning)),
		ComplexPrompt:      NewPromptVersion(evolutionPrompt(types.EvolutionComplex)),
		ConsolidatedPrompt: NewPromptVersion(consolidatedEvolution),
	}
}
