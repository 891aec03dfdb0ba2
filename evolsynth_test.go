package evolsynth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/soundprediction/go-evolsynth"
	"github.com/soundprediction/go-evolsynth/pkg/cache"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evolutionMarkers = map[types.EvolutionType]string{
	types.EvolutionSimple:       "evolving questions",
	types.EvolutionMultiContext: "multiple sources",
	types.EvolutionReasoning:    "multi-step reasoning",
	types.EvolutionComplex:      "advanced analytical",
}

func documents() []types.DocumentInput {
	return []types.DocumentInput{
		{Content: "Goroutines are lightweight threads managed by the Go runtime. They start with small stacks that grow on demand."},
		{Content: "Channels let goroutines communicate. An unbuffered channel synchronizes the sender and the receiver.", Metadata: map[string]interface{}{"topic": "channels"}},
	}
}

func settings(counts [4]int) types.GenerationSettings {
	s := types.DefaultGenerationSettings()
	s.ExecutionMode = types.ExecutionSequential
	s.MaxBaseQuestionsPerDoc = 2
	s.SimpleEvolutionCount = counts[0]
	s.MultiContextEvolutionCount = counts[1]
	s.ReasoningEvolutionCount = counts[2]
	s.ComplexEvolutionCount = counts[3]
	return s
}

// pipelineHandler plays every role of the pipeline. Evolution requests for
// the types in fail return a transient error.
func pipelineHandler(fail map[types.EvolutionType]bool) llm.HandlerFunc {
	return func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		system := req.Messages[0].Content
		user := llm.LastUserMessage(req)

		switch {
		case strings.Contains(system, "foundational"):
			if strings.Contains(user, "Channels let") {
				return &llm.Response{Content: "1. What do channels let goroutines do?\n2. What does an unbuffered channel synchronize?"}, nil
			}
			return &llm.Response{Content: "1. What are goroutines?\n2. How do goroutine stacks grow?"}, nil
		case strings.Contains(system, "strict evaluator"):
			return &llm.Response{Content: `{"question_quality": 8, "answer_accuracy": 7, "evolution_effectiveness": 6}`}, nil
		case strings.Contains(system, "answering questions"):
			return &llm.Response{
				Content:    "Certainly! Goroutines are scheduled by the Go runtime.",
				TokensUsed: &llm.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
			}, nil
		}

		for t, marker := range evolutionMarkers {
			if !strings.Contains(system, marker) {
				continue
			}
			if fail[t] {
				return nil, llm.NewTransientError(llm.ErrServiceUnavailable)
			}
			var b strings.Builder
			for i := 1; i <= 5; i++ {
				fmt.Fprintf(&b, "%d. How does the %s goroutine question %d apply?\n", i, t, i)
			}
			return &llm.Response{Content: b.String()}, nil
		}
		return nil, llm.NewPermanentError(fmt.Errorf("unexpected prompt: %.60s", system))
	}
}

func TestGenerateTwoDocumentScenario(t *testing.T) {
	client := llm.NewScriptedClient("gpt-4o-mini", pipelineHandler(nil))
	pipeline := evolsynth.NewClient(client, nil)
	defer pipeline.Close()

	result, err := pipeline.Generate(context.Background(), documents(), settings([4]int{2, 1, 1, 0}))
	require.NoError(t, err)
	assert.Empty(t, result.Failures)

	ds := result.Dataset
	require.Len(t, ds.EvolvedQuestions, 4)
	wantTypes := []types.EvolutionType{
		types.EvolutionSimple,
		types.EvolutionSimple,
		types.EvolutionMultiContext,
		types.EvolutionReasoning,
	}
	for i, q := range ds.EvolvedQuestions {
		assert.Equal(t, wantTypes[i], q.EvolutionType)
		assert.Equal(t, q.EvolutionType.ComplexityLevel(), q.ComplexityLevel)
		assert.NotEmpty(t, q.ID)
	}

	require.Len(t, ds.QuestionAnswers, 4)
	require.Len(t, ds.QuestionContexts, 4)
	for i, q := range ds.EvolvedQuestions {
		assert.Equal(t, q.ID, ds.QuestionAnswers[i].QuestionID)
		assert.Equal(t, "Goroutines are scheduled by the Go runtime.", ds.QuestionAnswers[i].Answer)
		assert.Equal(t, q.ID, ds.QuestionContexts[i].QuestionID)
		assert.NotEmpty(t, ds.QuestionContexts[i].Contexts)
	}

	require.NotNil(t, ds.Evaluation)
	assert.Len(t, ds.EvaluationScores, 12)
	assert.Equal(t, 4, ds.Evaluation.TotalQuestionsEvaluated)
	assert.InDelta(t, 0.8, ds.Evaluation.Metrics[types.MetricQuestionQuality].Mean, 1e-9)

	m := result.Metrics
	assert.False(t, m.CacheHit)
	assert.Equal(t, 4, m.QuestionsRequested)
	assert.Equal(t, 4, m.QuestionsGenerated)
	assert.Equal(t, 4, m.AnswersGenerated)
	assert.Equal(t, types.ExecutionSequential, m.ExecutionMode)
	// 2 seed calls, 3 evolution calls, 4 answers, 4 judge calls.
	assert.Equal(t, 13, m.GenerationCalls)
	assert.Equal(t, 13, client.CallCount())
	assert.Equal(t, 400, m.PromptTokens)
	assert.Greater(t, m.EstimatedCostUSD, 0.0)
}

func TestGenerateCacheRoundTrip(t *testing.T) {
	client := llm.NewScriptedClient("gpt-4o-mini", pipelineHandler(nil))
	pipeline := evolsynth.NewClient(client, nil)
	defer pipeline.Close()
	ctx := context.Background()
	s := settings([4]int{1, 1, 0, 0})

	first, err := pipeline.Generate(ctx, documents(), s)
	require.NoError(t, err)
	calls := client.CallCount()

	// Same content in another order with different metadata.
	docs := documents()
	docs[0], docs[1] = docs[1], docs[0]
	docs[0].Metadata = map[string]interface{}{"topic": "other"}
	docs[1].Content = "  " + docs[1].Content + "\n"

	second, err := pipeline.Generate(ctx, docs, s)
	require.NoError(t, err)
	assert.True(t, second.Metrics.CacheHit)
	assert.Equal(t, 0, second.Metrics.GenerationCalls)
	assert.Equal(t, calls, client.CallCount())

	// Questions and answers are shared; document references follow each
	// caller's order.
	require.Len(t, second.Dataset.EvolvedQuestions, len(first.Dataset.EvolvedQuestions))
	assert.Equal(t, first.Dataset.QuestionAnswers, second.Dataset.QuestionAnswers)
	for i, q := range first.Dataset.EvolvedQuestions {
		got := second.Dataset.EvolvedQuestions[i].SourceDocumentIndices
		require.Len(t, got, len(q.SourceDocumentIndices))
		for j, idx := range q.SourceDocumentIndices {
			assert.Equal(t, 1-idx, got[j])
		}

		firstSnippets := first.Dataset.QuestionContexts[i].Contexts
		secondSnippets := second.Dataset.QuestionContexts[i].Contexts
		require.Len(t, secondSnippets, len(firstSnippets))
		for j, snip := range secondSnippets {
			assert.Equal(t, firstSnippets[j].Text, snip.Text)
			assert.Equal(t, 1-firstSnippets[j].DocumentIndex, snip.DocumentIndex)
			assert.Equal(t, fmt.Sprintf("document_%d", snip.DocumentIndex), snip.Source)
			assert.Contains(t, docs[snip.DocumentIndex].Content, strings.Fields(snip.Text)[0])
		}
	}

	// The original order gets back exactly the first result.
	third, err := pipeline.Generate(ctx, documents(), s)
	require.NoError(t, err)
	assert.True(t, third.Metrics.CacheHit)
	want, err := json.Marshal(first.Dataset)
	require.NoError(t, err)
	got, err := json.Marshal(third.Dataset)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	stats, err := pipeline.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries["generation"])
	assert.Equal(t, 2, stats.Entries["docs"])
}

func TestGenerateSingleEvolutionTypeFailure(t *testing.T) {
	client := llm.NewScriptedClient("gpt-4o-mini", pipelineHandler(map[types.EvolutionType]bool{
		types.EvolutionReasoning: true,
	}))
	pipeline := evolsynth.NewClient(client, nil)
	defer pipeline.Close()
	s := settings([4]int{2, 1, 1, 1})
	s.SkipEvaluation = true

	result, err := pipeline.Generate(context.Background(), documents(), s)
	require.NoError(t, err)

	counts := make(map[types.EvolutionType]int)
	for _, q := range result.Dataset.EvolvedQuestions {
		counts[q.EvolutionType]++
	}
	assert.Equal(t, 2, counts[types.EvolutionSimple])
	assert.Equal(t, 1, counts[types.EvolutionMultiContext])
	assert.Equal(t, 0, counts[types.EvolutionReasoning])
	assert.Equal(t, 1, counts[types.EvolutionComplex])
	assert.Nil(t, result.Dataset.Evaluation)

	require.Len(t, result.Failures, 1)
	f := result.Failures[0]
	assert.Equal(t, types.StageEvolution, f.Stage)
	assert.Equal(t, types.EvolutionReasoning, f.EvolutionType)
	assert.Equal(t, types.FailureTransient, f.Kind)
	assert.Equal(t, 5, result.Metrics.QuestionsRequested)
	assert.Equal(t, 4, result.Metrics.QuestionsGenerated)

	// A run with a failed stage is not cached.
	again, err := pipeline.Generate(context.Background(), documents(), s)
	require.NoError(t, err)
	assert.False(t, again.Metrics.CacheHit)
}

const fastResponse = `[simple_evolution]
QUESTION: Why are goroutines cheaper than threads?
ANSWER: Sure! They start with small stacks.
CONTEXT: They start with small stacks that grow on demand.
---
[multi_context_evolution]
QUESTION: How do goroutines use channels to synchronize?
ANSWER: An unbuffered channel blocks until both sides are ready.
---`

func TestGenerateFastMode(t *testing.T) {
	client := llm.NewScriptedClient("gpt-4o-mini", func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Messages[0].Content, "evaluation datasets") {
			return &llm.Response{Content: fastResponse}, nil
		}
		return pipelineHandler(nil)(ctx, req)
	})
	pipeline := evolsynth.NewClient(client, nil)
	defer pipeline.Close()
	s := settings([4]int{1, 1, 0, 0})
	s.FastMode = true
	s.SkipEvaluation = true

	result, err := pipeline.Generate(context.Background(), documents(), s)
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.True(t, result.Metrics.FastMode)
	// 2 seed calls and the consolidated call; answers come back inline.
	assert.Equal(t, 3, client.CallCount())

	ds := result.Dataset
	require.Len(t, ds.EvolvedQuestions, 2)
	assert.Equal(t, "They start with small stacks.", ds.QuestionAnswers[0].Answer)
	assert.Equal(t, "They start with small stacks that grow on demand.", ds.QuestionContexts[0].Contexts[0].Text)
	// No inline context: the local extractor supplies one.
	assert.NotEmpty(t, ds.QuestionContexts[1].Contexts)

	standard := s
	standard.FastMode = false
	assert.NotEqual(t,
		evolsynth.GenerationKey(documents(), s, "gpt-4o-mini"),
		evolsynth.GenerationKey(documents(), standard, "gpt-4o-mini"))
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	client := llm.NewScriptedClient("gpt-4o-mini", pipelineHandler(nil))
	pipeline := evolsynth.NewClient(client, nil)
	defer pipeline.Close()

	_, err := pipeline.Generate(context.Background(), documents(), settings([4]int{0, 0, 0, 0}))
	assert.ErrorIs(t, err, types.ErrInvalidSettings)

	_, err = pipeline.Generate(context.Background(), []types.DocumentInput{{Content: "  "}}, settings([4]int{1, 0, 0, 0}))
	assert.ErrorIs(t, err, types.ErrInvalidDocuments)

	assert.Equal(t, 0, client.CallCount())
}

func TestGenerationKey(t *testing.T) {
	docs := documents()
	s := settings([4]int{2, 1, 1, 0})
	base := evolsynth.GenerationKey(docs, s, "gpt-4o-mini")
	assert.True(t, strings.HasPrefix(base, cache.PrefixGeneration))
	assert.Equal(t, base, evolsynth.GenerationKey(docs, s, "gpt-4o-mini"))

	reordered := []types.DocumentInput{docs[1], docs[0]}
	assert.Equal(t, base, evolsynth.GenerationKey(reordered, s, "gpt-4o-mini"))

	changed := documents()
	changed[0].Content += " Extra sentence."
	assert.NotEqual(t, base, evolsynth.GenerationKey(changed, s, "gpt-4o-mini"), "content")
	assert.NotEqual(t, base, evolsynth.GenerationKey(docs, s, "gpt-4o"), "model")

	tests := []struct {
		name   string
		modify func(*types.GenerationSettings)
	}{
		{"simple count", func(g *types.GenerationSettings) { g.SimpleEvolutionCount++ }},
		{"multi-context count", func(g *types.GenerationSettings) { g.MultiContextEvolutionCount++ }},
		{"reasoning count", func(g *types.GenerationSettings) { g.ReasoningEvolutionCount++ }},
		{"complex count", func(g *types.GenerationSettings) { g.ComplexEvolutionCount++ }},
		{"base questions", func(g *types.GenerationSettings) { g.MaxBaseQuestionsPerDoc++ }},
		{"temperature", func(g *types.GenerationSettings) { g.Temperature = 0.9 }},
		{"max tokens", func(g *types.GenerationSettings) { g.MaxTokens = 800 }},
		{"fast mode", func(g *types.GenerationSettings) { g.FastMode = !g.FastMode }},
		{"skip evaluation", func(g *types.GenerationSettings) { g.SkipEvaluation = !g.SkipEvaluation }},
	}
	seen := map[string]string{base: "base"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := s
			tt.modify(&changed)
			key := evolsynth.GenerationKey(docs, changed, "gpt-4o-mini")
			assert.NotEqual(t, base, key)
			prev, dup := seen[key]
			assert.False(t, dup, "same key as %s", prev)
			seen[key] = tt.name
		})
	}
}

func TestEvaluateAndCacheManagement(t *testing.T) {
	client := llm.NewScriptedClient("gpt-4o-mini", pipelineHandler(nil))
	pipeline := evolsynth.NewClient(client, nil)
	defer pipeline.Close()
	ctx := context.Background()

	_, err := pipeline.Evaluate(ctx, &types.Dataset{})
	assert.ErrorIs(t, err, evolsynth.ErrEmptyDataset)

	report, err := pipeline.Evaluate(ctx, &types.Dataset{
		EvolvedQuestions: []types.EvolvedQuestion{
			{ID: "q1", Question: "What are goroutines?", EvolutionType: types.EvolutionSimple, ComplexityLevel: 2},
		},
		QuestionAnswers: []types.QuestionAnswer{{QuestionID: "q1", Answer: "Lightweight threads."}},
	})
	require.NoError(t, err)
	assert.Len(t, report.Scores, 3)
	assert.Equal(t, 1, report.Summary.TotalQuestionsEvaluated)

	_, err = pipeline.Generate(ctx, documents(), settings([4]int{1, 0, 0, 0}))
	require.NoError(t, err)

	n, err := pipeline.ClearCache(ctx, "generation")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = pipeline.ClearCache(ctx, "embeddings")
	assert.ErrorIs(t, err, evolsynth.ErrUnknownNamespace)
}
