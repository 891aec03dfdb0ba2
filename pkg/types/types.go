package types

import (
	"fmt"
	"strings"
	"time"
)

// DocumentInput is a source document supplied by the caller.
type DocumentInput struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Source   string                 `json:"source,omitempty"`
}

// SourceName returns the label used to attribute snippets taken from the document.
func (d DocumentInput) SourceName(index int) string {
	if d.Source != "" {
		return d.Source
	}
	if v, ok := d.Metadata["source"].(string); ok && v != "" {
		return v
	}
	return fmt.Sprintf("document_%d", index)
}

// EvolutionType names a transformation applied to a seed question.
type EvolutionType string

const (
	EvolutionSimple       EvolutionType = "simple_evolution"
	EvolutionMultiContext EvolutionType = "multi_context_evolution"
	EvolutionReasoning    EvolutionType = "reasoning_evolution"
	EvolutionComplex      EvolutionType = "complex_evolution"
)

// EvolutionTypes lists every evolution type in output order.
var EvolutionTypes = []EvolutionType{
	EvolutionSimple,
	EvolutionMultiContext,
	EvolutionReasoning,
	EvolutionComplex,
}

// ComplexityLevel returns the fixed complexity assigned to questions of this type.
func (t EvolutionType) ComplexityLevel() int {
	switch t {
	case EvolutionSimple:
		return 2
	case EvolutionMultiContext:
		return 3
	case EvolutionReasoning:
		return 4
	case EvolutionComplex:
		return 5
	default:
		return 0
	}
}

// Order returns the position of the type in EvolutionTypes, or -1.
func (t EvolutionType) Order() int {
	for i, et := range EvolutionTypes {
		if et == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the known evolution types.
func (t EvolutionType) Valid() bool {
	return t.Order() >= 0
}

// ParseEvolutionType accepts the canonical name or its short form ("simple", "multi-context", ...).
func ParseEvolutionType(s string) (EvolutionType, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, t := range EvolutionTypes {
		if norm == string(t) || norm+"_evolution" == string(t) {
			return t, true
		}
	}
	return "", false
}

// SeedQuestion is a base question extracted from a single document.
type SeedQuestion struct {
	ID                  string `json:"id"`
	Text                string `json:"text"`
	SourceDocumentIndex int    `json:"source_document_index"`
}

// EvolvedQuestion is a question produced by an evolution.
type EvolvedQuestion struct {
	ID                    string        `json:"id"`
	Question              string        `json:"question"`
	EvolutionType         EvolutionType `json:"evolution_type"`
	ComplexityLevel       int           `json:"complexity_level"`
	SourceQuestionIDs     []string      `json:"source_question_ids,omitempty"`
	SourceDocumentIndices []int         `json:"source_document_indices,omitempty"`
}

// AnswerUnavailable is stored in place of an answer whose generation failed.
const AnswerUnavailable = "[answer unavailable]"

// QuestionAnswer pairs an evolved question with its generated answer.
type QuestionAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// ContextSnippet is a span of document text judged relevant to a question.
type ContextSnippet struct {
	Text          string `json:"text"`
	Source        string `json:"source"`
	DocumentIndex int    `json:"document_index"`
	Score         int    `json:"score"`
}

// QuestionContext holds the snippets for one question, most relevant first.
type QuestionContext struct {
	QuestionID string           `json:"question_id"`
	Contexts   []ContextSnippet `json:"contexts"`
}

// Texts returns the snippet texts in order.
func (qc QuestionContext) Texts() []string {
	out := make([]string, len(qc.Contexts))
	for i, c := range qc.Contexts {
		out[i] = c.Text
	}
	return out
}

// Metric is an evaluation dimension scored by the judge.
type Metric string

const (
	MetricQuestionQuality        Metric = "question_quality"
	MetricAnswerAccuracy         Metric = "answer_accuracy"
	MetricEvolutionEffectiveness Metric = "evolution_effectiveness"
)

// Metrics lists every evaluation metric in report order.
var Metrics = []Metric{
	MetricQuestionQuality,
	MetricAnswerAccuracy,
	MetricEvolutionEffectiveness,
}

// EvaluationScore is one metric score for one question.
type EvaluationScore struct {
	QuestionID      string  `json:"question_id"`
	Metric          Metric  `json:"metric"`
	RawScore        float64 `json:"raw_score"`
	NormalizedScore float64 `json:"normalized_score"`
	Strategy        string  `json:"strategy,omitempty"`
}

// MetricStatistics summarizes the normalized scores of one metric.
type MetricStatistics struct {
	Mean      float64 `json:"mean"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	StdDev    float64 `json:"std_dev"`
	Count     int     `json:"count"`
	Defaulted int     `json:"defaulted"`
}

// EvaluationSummary aggregates the scores of a dataset.
type EvaluationSummary struct {
	Metrics                   map[Metric]MetricStatistics `json:"metrics"`
	OverallScore              float64                     `json:"overall_score"`
	TotalQuestionsEvaluated   int                         `json:"total_questions_evaluated"`
	AverageComplexity         float64                     `json:"average_complexity"`
	EvolutionTypeDistribution map[EvolutionType]int       `json:"evolution_type_distribution"`
	JudgeFailures             int                         `json:"judge_failures"`
}

// Dataset is the generated evaluation dataset. It is the unit stored in the cache.
type Dataset struct {
	GenerationID     string             `json:"generation_id"`
	CreatedAt        time.Time          `json:"created_at"`
	Settings         GenerationSettings `json:"settings_used"`
	EvolvedQuestions []EvolvedQuestion  `json:"evolved_questions"`
	QuestionAnswers  []QuestionAnswer   `json:"question_answers"`
	QuestionContexts []QuestionContext  `json:"question_contexts"`
	EvaluationScores []EvaluationScore  `json:"evaluation_scores,omitempty"`
	Evaluation       *EvaluationSummary `json:"evaluation,omitempty"`
}

// AnswerFor returns the answer recorded for questionID.
func (d *Dataset) AnswerFor(questionID string) (string, bool) {
	for _, qa := range d.QuestionAnswers {
		if qa.QuestionID == questionID {
			return qa.Answer, true
		}
	}
	return "", false
}

// ContextFor returns the context record for questionID.
func (d *Dataset) ContextFor(questionID string) (QuestionContext, bool) {
	for _, qc := range d.QuestionContexts {
		if qc.QuestionID == questionID {
			return qc, true
		}
	}
	return QuestionContext{}, false
}

// PerformanceMetrics describes a single pipeline run.
type PerformanceMetrics struct {
	ExecutionTimeSeconds float64       `json:"execution_time_seconds"`
	QuestionsRequested   int           `json:"questions_requested"`
	QuestionsGenerated   int           `json:"questions_generated"`
	AnswersGenerated     int           `json:"answers_generated"`
	ContextsExtracted    int           `json:"contexts_extracted"`
	QuestionsPerSecond   float64       `json:"questions_per_second"`
	ExecutionMode        ExecutionMode `json:"execution_mode"`
	FastMode             bool          `json:"fast_mode"`
	CacheHit             bool          `json:"cache_hit"`
	GenerationCalls      int           `json:"generation_calls"`
	PromptTokens         int           `json:"prompt_tokens"`
	CompletionTokens     int           `json:"completion_tokens"`
	EstimatedCostUSD     float64       `json:"estimated_cost_usd"`
}

// GenerationResult is returned by a pipeline run.
type GenerationResult struct {
	Dataset  *Dataset           `json:"dataset"`
	Metrics  PerformanceMetrics `json:"performance_metrics"`
	Failures []StageFailure     `json:"failures,omitempty"`
}
