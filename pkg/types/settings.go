package types

import (
	"fmt"
	"strings"
)

// ExecutionMode controls how the per-type evolution calls are issued.
type ExecutionMode string

const (
	ExecutionConcurrent ExecutionMode = "concurrent"
	ExecutionSequential ExecutionMode = "sequential"
)

// Limits applied by Validate.
const (
	MaxEvolutionCount      = 10
	MaxBaseQuestionsPerDoc = 10
	MinMaxTokens           = 100
	MaxMaxTokens           = 4000
	MaxTemperature         = 2.0
	MaxDocumentsPerRequest = 10
)

// GenerationSettings configures a single pipeline run. It is validated once and
// never mutated afterwards.
type GenerationSettings struct {
	ExecutionMode              ExecutionMode `json:"execution_mode" mapstructure:"execution_mode" yaml:"execution_mode"`
	MaxBaseQuestionsPerDoc     int           `json:"max_base_questions_per_doc" mapstructure:"max_base_questions_per_doc" yaml:"max_base_questions_per_doc"`
	SimpleEvolutionCount       int           `json:"simple_evolution_count" mapstructure:"simple_evolution_count" yaml:"simple_evolution_count"`
	MultiContextEvolutionCount int           `json:"multi_context_evolution_count" mapstructure:"multi_context_evolution_count" yaml:"multi_context_evolution_count"`
	ReasoningEvolutionCount    int           `json:"reasoning_evolution_count" mapstructure:"reasoning_evolution_count" yaml:"reasoning_evolution_count"`
	ComplexEvolutionCount      int           `json:"complex_evolution_count" mapstructure:"complex_evolution_count" yaml:"complex_evolution_count"`
	Temperature                float64       `json:"temperature" mapstructure:"temperature" yaml:"temperature"`
	MaxTokens                  int           `json:"max_tokens" mapstructure:"max_tokens" yaml:"max_tokens"`
	FastMode                   bool          `json:"fast_mode" mapstructure:"fast_mode" yaml:"fast_mode"`
	SkipEvaluation             bool          `json:"skip_evaluation" mapstructure:"skip_evaluation" yaml:"skip_evaluation"`
}

// DefaultGenerationSettings returns the settings used when the caller supplies none.
func DefaultGenerationSettings() GenerationSettings {
	return GenerationSettings{
		ExecutionMode:              ExecutionConcurrent,
		MaxBaseQuestionsPerDoc:     3,
		SimpleEvolutionCount:       3,
		MultiContextEvolutionCount: 2,
		ReasoningEvolutionCount:    2,
		ComplexEvolutionCount:      1,
		Temperature:                0.7,
		MaxTokens:                  500,
	}
}

// CountFor returns the number of questions requested for an evolution type.
func (s GenerationSettings) CountFor(t EvolutionType) int {
	switch t {
	case EvolutionSimple:
		return s.SimpleEvolutionCount
	case EvolutionMultiContext:
		return s.MultiContextEvolutionCount
	case EvolutionReasoning:
		return s.ReasoningEvolutionCount
	case EvolutionComplex:
		return s.ComplexEvolutionCount
	default:
		return 0
	}
}

// TotalRequested returns the sum of all evolution counts.
func (s GenerationSettings) TotalRequested() int {
	total := 0
	for _, t := range EvolutionTypes {
		total += s.CountFor(t)
	}
	return total
}

// ModeLabel distinguishes the fast and standard pipelines.
func (s GenerationSettings) ModeLabel() string {
	if s.FastMode {
		return "fast"
	}
	return "standard"
}

// Validate rejects settings that cannot produce a dataset.
func (s GenerationSettings) Validate() error {
	var problems []string

	switch s.ExecutionMode {
	case ExecutionConcurrent, ExecutionSequential:
	default:
		problems = append(problems, fmt.Sprintf("execution_mode must be %q or %q, got %q",
			ExecutionConcurrent, ExecutionSequential, s.ExecutionMode))
	}

	if s.MaxBaseQuestionsPerDoc < 1 || s.MaxBaseQuestionsPerDoc > MaxBaseQuestionsPerDoc {
		problems = append(problems, fmt.Sprintf("max_base_questions_per_doc must be between 1 and %d", MaxBaseQuestionsPerDoc))
	}

	for _, t := range EvolutionTypes {
		if n := s.CountFor(t); n < 0 || n > MaxEvolutionCount {
			problems = append(problems, fmt.Sprintf("%s count must be between 0 and %d, got %d", t, MaxEvolutionCount, n))
		}
	}
	if s.TotalRequested() == 0 {
		problems = append(problems, "at least one evolution count must be positive")
	}

	if s.Temperature < 0 || s.Temperature > MaxTemperature {
		problems = append(problems, fmt.Sprintf("temperature must be between 0 and %.1f", MaxTemperature))
	}
	if s.MaxTokens < MinMaxTokens || s.MaxTokens > MaxMaxTokens {
		problems = append(problems, fmt.Sprintf("max_tokens must be between %d and %d", MinMaxTokens, MaxMaxTokens))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateDocuments checks the document list of a generation request.
func ValidateDocuments(docs []DocumentInput, maxDocs int) error {
	if maxDocs <= 0 {
		maxDocs = MaxDocumentsPerRequest
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: at least one document is required", ErrInvalidDocuments)
	}
	if len(docs) > maxDocs {
		return fmt.Errorf("%w: at most %d documents per request, got %d", ErrInvalidDocuments, maxDocs, len(docs))
	}
	for i, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			return fmt.Errorf("%w: document %d is empty", ErrInvalidDocuments, i)
		}
	}
	return nil
}
