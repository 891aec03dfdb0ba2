package evaluation

import (
	"github.com/montanaflynn/stats"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// Statistics computes mean, min, max and population standard deviation of
// normalized scores. An empty input yields zero statistics.
func Statistics(values []float64) types.MetricStatistics {
	if len(values) == 0 {
		return types.MetricStatistics{}
	}
	data := stats.Float64Data(values)

	mean, _ := stats.Mean(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	sd, _ := stats.StandardDeviationPopulation(data)

	return types.MetricStatistics{
		Mean:   round(mean),
		Min:    round(lo),
		Max:    round(hi),
		StdDev: round(sd),
		Count:  len(values),
	}
}

// Summarize aggregates scores per metric together with dataset-level counts.
func Summarize(questions []types.EvolvedQuestion, scores []types.EvaluationScore, judgeFailures int) *types.EvaluationSummary {
	byMetric := make(map[types.Metric][]float64, len(types.Metrics))
	defaulted := make(map[types.Metric]int, len(types.Metrics))
	evaluated := make(map[string]bool)
	for _, s := range scores {
		byMetric[s.Metric] = append(byMetric[s.Metric], s.NormalizedScore)
		if s.Strategy == StrategyDefault {
			defaulted[s.Metric]++
		}
		evaluated[s.QuestionID] = true
	}

	summary := &types.EvaluationSummary{
		Metrics:                   make(map[types.Metric]types.MetricStatistics, len(types.Metrics)),
		TotalQuestionsEvaluated:   len(evaluated),
		EvolutionTypeDistribution: make(map[types.EvolutionType]int),
		JudgeFailures:             judgeFailures,
	}

	var means []float64
	for _, m := range types.Metrics {
		st := Statistics(byMetric[m])
		st.Defaulted = defaulted[m]
		summary.Metrics[m] = st
		if st.Count > 0 {
			means = append(means, st.Mean)
		}
	}
	if len(means) > 0 {
		overall, _ := stats.Mean(means)
		summary.OverallScore = round(overall)
	}

	if len(questions) > 0 {
		levels := make([]float64, len(questions))
		for i, q := range questions {
			levels[i] = float64(q.ComplexityLevel)
			summary.EvolutionTypeDistribution[q.EvolutionType]++
		}
		avg, _ := stats.Mean(levels)
		summary.AverageComplexity = round(avg)
	}
	return summary
}

func round(v float64) float64 {
	r, err := stats.Round(v, 4)
	if err != nil {
		return v
	}
	return r
}
