package prompts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
)

// outputInstruction is appended to every system message.
const outputInstruction = "Write in the language of the source content. Do not escape unicode characters."

var errEmptyPrompt = errors.New("prompt rendered no user content")

// PromptFunction renders prompt messages from a context map.
type PromptFunction func(context map[string]interface{}) ([]llm.Message, error)

// PromptVersion is one rendered prompt of the library.
type PromptVersion interface {
	Call(context map[string]interface{}) ([]llm.Message, error)
}

type promptVersion struct {
	fn PromptFunction
}

// Call renders the prompt, appends the output instruction to the system turn
// and rejects renders whose user turn is blank.
func (p promptVersion) Call(context map[string]interface{}) ([]llm.Message, error) {
	messages, err := p.fn(context)
	if err != nil {
		return nil, err
	}

	hasUser := false
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			messages[i].Content = strings.TrimRight(msg.Content, "\n") + "\n" + outputInstruction
		case llm.RoleUser:
			hasUser = hasUser || strings.TrimSpace(msg.Content) != ""
		}
	}
	if !hasUser {
		return nil, errEmptyPrompt
	}
	return messages, nil
}

// NewPromptVersion wraps fn.
func NewPromptVersion(fn PromptFunction) PromptVersion {
	return promptVersion{fn: fn}
}

func requireString(context map[string]interface{}, key string) (string, error) {
	v, ok := context[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("prompt context is missing %q", key)
	}
	return v, nil
}

func optionalString(context map[string]interface{}, key, def string) string {
	if v, ok := context[key].(string); ok && v != "" {
		return v
	}
	return def
}

func requireStrings(context map[string]interface{}, key string) ([]string, error) {
	v, ok := context[key].([]string)
	if !ok || len(v) == 0 {
		return nil, fmt.Errorf("prompt context is missing %q", key)
	}
	return v, nil
}

func intValue(context map[string]interface{}, key string, def int) int {
	if v, ok := context[key].(int); ok && v > 0 {
		return v
	}
	return def
}

// numbered renders items as "1. item" lines.
func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return strings.TrimRight(b.String(), "\n")
}

// labeledContexts renders context snippets as "[Context n]" blocks.
func labeledContexts(contexts []string) string {
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[Context %d]\n%s\n\n", i+1, c)
	}
	return strings.TrimRight(b.String(), "\n")
}
