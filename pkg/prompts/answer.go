package prompts

import (
	"fmt"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
)

// AnswerPrompt defines the interface for answer generation prompts.
type AnswerPrompt interface {
	Answer() PromptVersion
}

// AnswerVersions holds all versions of answer generation prompts.
type AnswerVersions struct {
	AnswerPromptVersion PromptVersion
}

func (a *AnswerVersions) Answer() PromptVersion { return a.AnswerPromptVersion }

func answerQuestion(context map[string]interface{}) ([]llm.Message, error) {
	question, err := requireString(context, "question")
	if err != nil {
		return nil, err
	}
	contexts, _ := context["contexts"].([]string)
	rendered := labeledContexts(contexts)
	if rendered == "" {
		rendered = "(no context available)"
	}

	sysPrompt := `You are an expert at answering questions based on provided context.
Base your answer strictly on the information provided in the context(s).
Do not greet the user, do not restate the question, and do not add offers of further help.
If the context does not contain the answer, say what is missing in one sentence.`

	userPrompt := fmt.Sprintf(`
<CONTEXTS>
%s
</CONTEXTS>

<QUESTION>
%s
</QUESTION>

Write a comprehensive and accurate answer. Output the answer text only.
`, rendered, question)

	return llm.Exchange(sysPrompt, userPrompt), nil
}

// NewAnswerVersions creates a new AnswerVersions instance.
func NewAnswerVersions() *AnswerVersions {
	return &AnswerVersions{
		AnswerPromptVersion: NewPromptVersion(answerQuestion),
	}
}
