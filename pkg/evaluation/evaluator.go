package evaluation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/prompts"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"golang.org/x/sync/errgroup"
)

const (
	// judgeTemperature keeps scoring as repeatable as the provider allows.
	judgeTemperature = 0.0
	judgeMaxTokens   = 200
)

// Evaluator scores datasets with an LLM judge.
type Evaluator struct {
	client  llm.Client
	prompts prompts.Library
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithMetrics counts the parsing strategy of every score.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithPrompts replaces the default prompt library.
func WithPrompts(p prompts.Library) Option {
	return func(e *Evaluator) { e.prompts = p }
}

// NewEvaluator creates an evaluator calling client.
func NewEvaluator(client llm.Client, opts ...Option) *Evaluator {
	e := &Evaluator{
		client:  client,
		prompts: prompts.DefaultLibrary,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Report is the outcome of evaluating a dataset.
type Report struct {
	Scores   []types.EvaluationScore
	Summary  *types.EvaluationSummary
	Failures []types.StageFailure
	Calls    int
}

type questionOutcome struct {
	scores  []types.EvaluationScore
	failure *types.StageFailure
}

// Evaluate issues one judge call per question. A failed call scores that
// question with neutral defaults and records a failure; it never aborts.
func (e *Evaluator) Evaluate(ctx context.Context, ds *types.Dataset) *Report {
	ctx = context.WithValue(ctx, types.ContextKeyStage, types.StageEvaluation)
	outcomes := make([]questionOutcome, len(ds.EvolvedQuestions))

	var g errgroup.Group
	for i, q := range ds.EvolvedQuestions {
		g.Go(func() error {
			outcomes[i] = e.evaluateQuestion(ctx, ds, q)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Calls: len(ds.EvolvedQuestions)}
	judgeFailures := 0
	for _, o := range outcomes {
		report.Scores = append(report.Scores, o.scores...)
		if o.failure != nil {
			report.Failures = append(report.Failures, *o.failure)
			judgeFailures++
		}
	}
	report.Summary = Summarize(ds.EvolvedQuestions, report.Scores, judgeFailures)
	return report
}

func (e *Evaluator) evaluateQuestion(ctx context.Context, ds *types.Dataset, q types.EvolvedQuestion) questionOutcome {
	answer, _ := ds.AnswerFor(q.ID)
	qc, _ := ds.ContextFor(q.ID)

	fail := func(kind string, err error) questionOutcome {
		return questionOutcome{
			scores: e.toScores(q.ID, defaultScores()),
			failure: &types.StageFailure{
				Stage:         types.StageEvaluation,
				Kind:          kind,
				EvolutionType: q.EvolutionType,
				QuestionID:    q.ID,
				Error:         err.Error(),
			},
		}
	}

	messages, err := e.prompts.Judge().Score().Call(map[string]interface{}{
		"question":       q.Question,
		"answer":         answer,
		"evolution_type": string(q.EvolutionType),
		"contexts":       qc.Texts(),
	})
	if err != nil {
		return fail(types.FailurePermanent, fmt.Errorf("failed to build judge prompt: %w", err))
	}

	req := llm.NewRequest(messages, judgeTemperature, judgeMaxTokens)
	req.JSONMode = true
	resp, err := e.client.Generate(ctx, req)
	if err != nil {
		e.logger.WarnContext(ctx, "judge call failed, using neutral scores", "question_id", q.ID, "error", err)
		return fail(llm.FailureKind(err), err)
	}

	parsed := ParseScores(resp.Content)
	e.logger.DebugContext(ctx, "judge scores parsed", "question_id", q.ID, "scores", describe(parsed))
	return questionOutcome{scores: e.toScores(q.ID, parsed)}
}

func (e *Evaluator) toScores(questionID string, parsed map[types.Metric]ParsedScore) []types.EvaluationScore {
	out := make([]types.EvaluationScore, 0, len(types.Metrics))
	for _, m := range types.Metrics {
		p := parsed[m]
		e.metrics.IncScoreStrategy(p.Strategy)
		out = append(out, types.EvaluationScore{
			QuestionID:      questionID,
			Metric:          m,
			RawScore:        p.Raw,
			NormalizedScore: Normalize(p.Raw),
			Strategy:        p.Strategy,
		})
	}
	return out
}

func defaultScores() map[types.Metric]ParsedScore {
	out := make(map[types.Metric]ParsedScore, len(types.Metrics))
	for _, m := range types.Metrics {
		out[m] = ParsedScore{Raw: NeutralRawScore, Strategy: StrategyDefault}
	}
	return out
}
