package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/prompts"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// Generator answers evolved questions from their context snippets.
type Generator struct {
	client  llm.Client
	prompts prompts.Library
	logger  *slog.Logger
}

// NewGenerator creates a generator. A nil logger uses slog.Default.
func NewGenerator(client llm.Client, library prompts.Library, logger *slog.Logger) *Generator {
	if library == nil {
		library = prompts.DefaultLibrary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:  client,
		prompts: library,
		logger:  logger,
	}
}

// Answer returns the cleaned answer for question. On failure it returns
// types.AnswerUnavailable together with the error.
func (g *Generator) Answer(ctx context.Context, question string, contexts []string, settings types.GenerationSettings) (string, error) {
	ctx = context.WithValue(ctx, types.ContextKeyStage, types.StageAnswer)

	messages, err := g.prompts.Answer().Answer().Call(map[string]interface{}{
		"question": question,
		"contexts": contexts,
	})
	if err != nil {
		return types.AnswerUnavailable, fmt.Errorf("failed to build answer prompt: %w", err)
	}

	resp, err := g.client.Generate(ctx, llm.NewRequest(messages, settings.Temperature, settings.MaxTokens))
	if err != nil {
		g.logger.ErrorContext(ctx, "answer generation failed", "error", err)
		return types.AnswerUnavailable, err
	}

	answer := Clean(resp.Content)
	if answer == "" {
		return types.AnswerUnavailable, fmt.Errorf("%w: empty answer", llm.ErrMalformedResponse)
	}
	return answer, nil
}
