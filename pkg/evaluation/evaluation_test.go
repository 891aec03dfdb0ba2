package evaluation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/soundprediction/go-evolsynth/pkg/evaluation"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScoreStrategies(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		metric   types.Metric
		raw      float64
		strategy string
	}{
		{
			name:   "strict json",
			text:   `{"question_quality": 8, "answer_accuracy": 6, "evolution_effectiveness": 7}`,
			metric: types.MetricAnswerAccuracy, raw: 6, strategy: evaluation.StrategyJSON,
		},
		{
			name:   "json in code fence with trailing comma",
			text:   "```json\n{\"question_quality\": 9, \"answer_accuracy\": 7,}\n```",
			metric: types.MetricQuestionQuality, raw: 9, strategy: evaluation.StrategyJSON,
		},
		{
			name:   "json string fraction",
			text:   `{"Question Quality": "7/10"}`,
			metric: types.MetricQuestionQuality, raw: 7, strategy: evaluation.StrategyJSON,
		},
		{
			name:   "json nested score",
			text:   `{"evolution_effectiveness": {"score": 4, "reason": "shallow"}}`,
			metric: types.MetricEvolutionEffectiveness, raw: 4, strategy: evaluation.StrategyJSON,
		},
		{
			name:   "labeled",
			text:   "Question Quality: 8\nAnswer Accuracy: 6",
			metric: types.MetricAnswerAccuracy, raw: 6, strategy: evaluation.StrategyLabeled,
		},
		{
			name:   "labeled decimal with bold",
			text:   "**Evolution effectiveness**: 7.5",
			metric: types.MetricEvolutionEffectiveness, raw: 7.5, strategy: evaluation.StrategyLabeled,
		},
		{
			name:   "fraction near label",
			text:   "Answer accuracy - 9/10, very good",
			metric: types.MetricAnswerAccuracy, raw: 9, strategy: evaluation.StrategyFraction,
		},
		{
			name:   "fraction after words",
			text:   "The question quality is roughly 6 / 10 overall.",
			metric: types.MetricQuestionQuality, raw: 6, strategy: evaluation.StrategyFraction,
		},
		{
			name:   "percent",
			text:   "Answer accuracy: 70%",
			metric: types.MetricAnswerAccuracy, raw: 7, strategy: evaluation.StrategyPercent,
		},
		{
			name:   "number on label line",
			text:   "Evolution effectiveness was about 3 out of ten.",
			metric: types.MetricEvolutionEffectiveness, raw: 3, strategy: evaluation.StrategyLineNumber,
		},
		{
			name:   "nothing parseable",
			text:   "The answer seems fine overall.",
			metric: types.MetricQuestionQuality, raw: evaluation.NeutralRawScore, strategy: evaluation.StrategyDefault,
		},
		{
			name:   "label without number",
			text:   "Question quality: excellent",
			metric: types.MetricQuestionQuality, raw: evaluation.NeutralRawScore, strategy: evaluation.StrategyDefault,
		},
		{
			name:   "json metric without a number keeps the neutral default",
			text:   `{"question_quality": 8, "answer_accuracy": "N/A", "evolution_effectiveness": 3}`,
			metric: types.MetricAnswerAccuracy, raw: evaluation.NeutralRawScore, strategy: evaluation.StrategyDefault,
		},
		{
			name:   "one-line labels do not borrow a neighbour's number",
			text:   "Question Quality: 8. Answer Accuracy: not assessable. Evolution Effectiveness: 3",
			metric: types.MetricAnswerAccuracy, raw: evaluation.NeutralRawScore, strategy: evaluation.StrategyDefault,
		},
		{
			name:   "fraction stops at the next label",
			text:   "Answer accuracy unclear, question quality 7/10",
			metric: types.MetricAnswerAccuracy, raw: evaluation.NeutralRawScore, strategy: evaluation.StrategyDefault,
		},
		{
			name:   "number far after label ignored",
			text:   "Question quality was not something the reviewer could judge, see note 4",
			metric: types.MetricQuestionQuality, raw: evaluation.NeutralRawScore, strategy: evaluation.StrategyDefault,
		},
		{
			name:   "out of range clamped",
			text:   "Question quality: 11",
			metric: types.MetricQuestionQuality, raw: 10, strategy: evaluation.StrategyLabeled,
		},
		{
			name:   "zero clamped up",
			text:   "Answer accuracy: 0",
			metric: types.MetricAnswerAccuracy, raw: 1, strategy: evaluation.StrategyLabeled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluation.ParseScore(tt.text, tt.metric)
			assert.Equal(t, tt.raw, got.Raw)
			assert.Equal(t, tt.strategy, got.Strategy)
		})
	}
}

func TestNormalizedScoresNeverExceedCap(t *testing.T) {
	adversarial := []string{
		"Question quality: 10/10",
		"Question quality: 100%",
		"Question quality: 11",
		"Question quality: 1000",
		`{"question_quality": 10}`,
		`{"question_quality": -3}`,
		"Question quality: 0",
		"no score at all",
	}
	for _, text := range adversarial {
		p := evaluation.ParseScore(text, types.MetricQuestionQuality)
		n := evaluation.Normalize(p.Raw)
		assert.GreaterOrEqual(t, n, 0.0, text)
		assert.LessOrEqual(t, n, evaluation.MaxNormalizedScore, text)
	}

	assert.Equal(t, 0.95, evaluation.Normalize(10))
	assert.Equal(t, 0.95, evaluation.Normalize(9.9))
	assert.InDelta(t, 0.7, evaluation.Normalize(7), 1e-9)
	assert.InDelta(t, 0.1, evaluation.Normalize(-4), 1e-9)
}

func TestStatistics(t *testing.T) {
	st := evaluation.Statistics([]float64{0.5, 0.7, 0.9})
	assert.InDelta(t, 0.7, st.Mean, 1e-9)
	assert.Equal(t, 0.5, st.Min)
	assert.Equal(t, 0.9, st.Max)
	assert.InDelta(t, 0.1633, st.StdDev, 1e-4)
	assert.Equal(t, 3, st.Count)

	assert.Equal(t, types.MetricStatistics{}, evaluation.Statistics(nil))
}

func dataset() *types.Dataset {
	return &types.Dataset{
		EvolvedQuestions: []types.EvolvedQuestion{
			{ID: "q1", Question: "Why are goroutines cheap?", EvolutionType: types.EvolutionSimple, ComplexityLevel: 2},
			{ID: "q2", Question: "How do channels relate to goroutines?", EvolutionType: types.EvolutionReasoning, ComplexityLevel: 4},
		},
		QuestionAnswers: []types.QuestionAnswer{
			{QuestionID: "q1", Answer: "Small stacks."},
			{QuestionID: "q2", Answer: "Channels connect them."},
		},
		QuestionContexts: []types.QuestionContext{
			{QuestionID: "q1", Contexts: []types.ContextSnippet{{Text: "Goroutines start small."}}},
		},
	}
}

func TestEvaluateScoresEveryQuestion(t *testing.T) {
	client := llm.NewScriptedClient("judge", func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		if strings.Contains(llm.LastUserMessage(req), "Why are goroutines cheap?") {
			return &llm.Response{Content: `{"question_quality": 8, "answer_accuracy": 10, "evolution_effectiveness": 6}`}, nil
		}
		// No number for evolution effectiveness.
		return &llm.Response{Content: "Question quality: 6/10\nAnswer accuracy: 4\nEvolution effectiveness: weak"}, nil
	})

	report := evaluation.NewEvaluator(client).Evaluate(context.Background(), dataset())
	assert.Empty(t, report.Failures)
	assert.Equal(t, 2, report.Calls)
	require.Len(t, report.Scores, 6)

	assert.Equal(t, "q1", report.Scores[0].QuestionID)
	assert.Equal(t, types.MetricQuestionQuality, report.Scores[0].Metric)
	assert.Equal(t, 0.95, report.Scores[1].NormalizedScore)
	assert.Equal(t, evaluation.StrategyDefault, report.Scores[5].Strategy)
	assert.Equal(t, evaluation.NeutralRawScore, report.Scores[5].RawScore)

	s := report.Summary
	require.NotNil(t, s)
	assert.Equal(t, 2, s.TotalQuestionsEvaluated)
	assert.Equal(t, 1, s.Metrics[types.MetricEvolutionEffectiveness].Defaulted)
	assert.InDelta(t, 0.55, s.Metrics[types.MetricEvolutionEffectiveness].Mean, 1e-9)
	assert.InDelta(t, 3.0, s.AverageComplexity, 1e-9)
	assert.Equal(t, 1, s.EvolutionTypeDistribution[types.EvolutionReasoning])
	assert.Greater(t, s.OverallScore, 0.0)

	req := client.Calls()[0]
	assert.True(t, req.JSONMode)
}

func TestEvaluateJudgeFailureUsesNeutralScores(t *testing.T) {
	client := llm.NewScriptedClient("judge", func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return nil, llm.NewTransientError(llm.ErrRateLimited)
	})

	report := evaluation.NewEvaluator(client).Evaluate(context.Background(), dataset())
	require.Len(t, report.Failures, 2)
	assert.Equal(t, types.StageEvaluation, report.Failures[0].Stage)
	assert.False(t, report.Failures[0].BlocksCaching())
	require.Len(t, report.Scores, 6)
	for _, s := range report.Scores {
		assert.Equal(t, 0.5, s.NormalizedScore)
	}
	assert.Equal(t, 2, report.Summary.JudgeFailures)
	assert.Equal(t, 0.0, report.Summary.Metrics[types.MetricAnswerAccuracy].StdDev)
}
