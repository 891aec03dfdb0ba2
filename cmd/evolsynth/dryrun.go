package evolsynth

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
)

var planLine = regexp.MustCompile(`(?m)^- (\w+): (\d+) question`)

// dryRunHandler answers every pipeline prompt with a well-formed canned
// response so the whole flow can be exercised without a provider.
func dryRunHandler(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	user := llm.LastUserMessage(req)
	usage := &llm.TokenUsage{PromptTokens: len(user) / 4, CompletionTokens: 40}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	var content string
	switch {
	case req.JSONMode:
		content = `{"question_quality": 7, "answer_accuracy": 7, "evolution_effectiveness": 6}`
	case strings.Contains(user, "QUESTION: <the evolved question>"):
		var b strings.Builder
		for _, m := range planLine.FindAllStringSubmatch(user, -1) {
			n, _ := strconv.Atoi(m[2])
			for i := 1; i <= n; i++ {
				fmt.Fprintf(&b, "[%s]\nQUESTION: Dry-run %s question %d?\nANSWER: Dry-run answer %d.\nCONTEXT: Dry-run context.\n---\n", m[1], m[1], i, i)
			}
		}
		content = b.String()
	case strings.Contains(user, "numbered list"):
		var b strings.Builder
		for i := 1; i <= 10; i++ {
			fmt.Fprintf(&b, "%d. What does part %d of the content describe?\n", i, i)
		}
		content = b.String()
	default:
		content = "Dry-run answer grounded in the supplied context."
	}
	return &llm.Response{Content: content, TokensUsed: usage, Model: "dry-run"}, nil
}
