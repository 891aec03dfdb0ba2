package prompts

import (
	"fmt"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
)

// JudgePrompt defines the interface for evaluation prompts.
type JudgePrompt interface {
	Score() PromptVersion
}

// JudgeVersions holds all versions of evaluation prompts.
type JudgeVersions struct {
	ScorePrompt PromptVersion
}

func (j *JudgeVersions) Score() PromptVersion { return j.ScorePrompt }

// judgeScore asks the judge to grade one question/answer pair.
// Context keys: question, answer, evolution_type (string), contexts ([]string).
func judgeScore(context map[string]interface{}) ([]llm.Message, error) {
	question, err := requireString(context, "question")
	if err != nil {
		return nil, err
	}
	answer := optionalString(context, "answer", "(no answer)")
	evolutionType := optionalString(context, "evolution_type", "unknown")
	contexts, _ := context["contexts"].([]string)

	sysPrompt := `You are a strict evaluator of synthetic question/answer datasets.
Score critically. Reserve 9 and 10 for genuinely excellent work.`

	userPrompt := fmt.Sprintf(`
<CONTEXTS>
%s
</CONTEXTS>

<QUESTION evolution_type=%q>
%s
</QUESTION>

<ANSWER>
%s
</ANSWER>

Rate the pair on three criteria, each an integer from 1 to 10:
- question_quality: clarity, specificity and answerability of the question
- answer_accuracy: correctness and completeness of the answer with respect to the contexts
- evolution_effectiveness: how well the question reaches the complexity expected of its evolution type

Respond with JSON only:
{"question_quality": <1-10>, "answer_accuracy": <1-10>, "evolution_effectiveness": <1-10>}
`, labeledContexts(contexts), evolutionType, question, answer)

	return llm.Exchange(sysPrompt, userPrompt), nil
}

// NewJudgeVersions creates a new JudgeVersions instance.
func NewJudgeVersions() *JudgeVersions {
	return &JudgeVersions{
		ScorePrompt: NewPromptVersion(judgeScore),
	}
}
