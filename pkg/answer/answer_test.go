package answer_test

import (
	"context"
	"testing"

	"github.com/soundprediction/go-evolsynth/pkg/answer"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain answer untouched", in: "Goroutines are cheap.", want: "Goroutines are cheap."},
		{name: "lowercase untouched", in: "go is fun.", want: "go is fun."},
		{name: "stacked openers", in: "Certainly! Here's the answer: Goroutines are cheap.", want: "Goroutines are cheap."},
		{
			name: "opener and closer",
			in:   "Sure, based on the provided context, goroutines are cheap. I hope this helps!",
			want: "Goroutines are cheap.",
		},
		{name: "answer label", in: "Answer: 42 is the value.", want: "42 is the value."},
		{name: "bold answer label", in: "**Answer:** Channels are typed.", want: "Channels are typed."},
		{name: "let me know closer", in: "Goroutines are cheap. Let me know if you have more questions.", want: "Goroutines are cheap."},
		{name: "anything else closer", in: "Channels block. Anything else I can clarify?", want: "Channels block."},
		{name: "what I found lead-in", in: "Here's what I found: channels are typed.", want: "Channels are typed."},
		{name: "brief answer lead-in", in: "Here is a brief answer based on the context: Stacks grow.", want: "Stacks grow."},
		{name: "substantive here-is kept", in: "Here is why stacks grow: they start small.", want: "Here is why stacks grow: they start small."},
		{name: "here are the steps kept", in: "Here are the steps: create a channel, then send.", want: "Here are the steps: create a channel, then send."},
		{name: "inner phrase kept", in: "The value listed here is: 5", want: "The value listed here is: 5"},
		{name: "only boilerplate keeps original", in: "Certainly!", want: "Certainly!"},
		{name: "surrounding whitespace", in: "  Of course. Channels are typed.  ", want: "Channels are typed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, answer.Clean(tt.in))
		})
	}
}

func TestGeneratorAnswers(t *testing.T) {
	client := llm.NewScriptedClient("test-model", llm.StaticResponse("Certainly! Goroutines start with small stacks."))
	gen := answer.NewGenerator(client, nil, nil)

	settings := types.DefaultGenerationSettings()
	got, err := gen.Answer(context.Background(), "Why are goroutines cheap?", []string{"Goroutines start with small stacks."}, settings)
	require.NoError(t, err)
	assert.Equal(t, "Goroutines start with small stacks.", got)

	require.Equal(t, 1, client.CallCount())
	req := client.Calls()[0]
	assert.Contains(t, llm.LastUserMessage(req), "[Context 1]")
	assert.Equal(t, settings.MaxTokens, req.MaxTokens)
}

func TestGeneratorFailureYieldsSentinel(t *testing.T) {
	client := llm.NewScriptedClient("test-model", func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return nil, llm.NewTransientError(llm.ErrTimeout)
	})
	gen := answer.NewGenerator(client, nil, nil)

	got, err := gen.Answer(context.Background(), "Why?", nil, types.DefaultGenerationSettings())
	require.Error(t, err)
	assert.True(t, llm.IsTimeout(err))
	assert.Equal(t, types.AnswerUnavailable, got)
}

func TestGeneratorEmptyResponse(t *testing.T) {
	client := llm.NewScriptedClient("test-model", llm.StaticResponse("   "))
	got, err := answer.NewGenerator(client, nil, nil).Answer(context.Background(), "Why?", nil, types.DefaultGenerationSettings())
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
	assert.Equal(t, types.AnswerUnavailable, got)
}
