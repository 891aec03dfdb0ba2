package prompts

import (
	"fmt"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
)

// BaseQuestionsPrompt defines the interface for seed question prompts.
type BaseQuestionsPrompt interface {
	Extract() PromptVersion
}

// BaseQuestionsVersions holds all versions of seed question prompts.
type BaseQuestionsVersions struct {
	ExtractPrompt PromptVersion
}

func (b *BaseQuestionsVersions) Extract() PromptVersion { return b.ExtractPrompt }

// extractBaseQuestions asks for literal questions answerable from one document.
// Context keys: content (string), max_questions (int).
func extractBaseQuestions(context map[string]interface{}) ([]llm.Message, error) {
	content, err := requireString(context, "content")
	if err != nil {
		return nil, err
	}
	maxQuestions := intValue(context, "max_questions", 3)

	sysPrompt := `You are an expert at generating simple, foundational questions from document content.`

	userPrompt := fmt.Sprintf(`
<CONTENT>
%s
</CONTENT>

Generate up to %d simple, factual questions that can be answered directly from the content above.
The questions should be:
1. Clear and straightforward
2. Answerable from the given content alone
3. Spread across different aspects of the content
4. Suitable for evolution into more complex questions

Return only a numbered list, one question per line, each ending with a question mark:
1. <question>
2. <question>
`, content, maxQuestions)

	return llm.Exchange(sysPrompt, userPrompt), nil
}

// NewBaseQuestionsVersions creates a new BaseQuestionsVersions instance.
func NewBaseQuestionsVersions() *BaseQuestionsVersions {
	return &BaseQuestionsVersions{
		ExtractPrompt: NewPromptVersion(extractBaseQuestions),
	}
}
