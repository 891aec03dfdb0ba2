package evolution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/prompts"
	"github.com/soundprediction/go-evolsynth/pkg/questions"
	"github.com/soundprediction/go-evolsynth/pkg/retrieval"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultContextChars bounds each document excerpt placed in an evolution prompt.
	DefaultContextChars = 1500
	// maxConsolidatedTokens caps the completion budget of the single fast-mode call.
	maxConsolidatedTokens = 4 * types.MaxMaxTokens
)

// Engine turns seed questions into evolved questions.
type Engine struct {
	client       llm.Client
	prompts      prompts.Library
	logger       *slog.Logger
	contextChars int
	newID        func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPrompts replaces the default prompt library.
func WithPrompts(p prompts.Library) Option {
	return func(e *Engine) { e.prompts = p }
}

// WithContextChars sets the per-document excerpt budget.
func WithContextChars(n int) Option {
	return func(e *Engine) { e.contextChars = n }
}

// NewEngine creates an engine calling client.
func NewEngine(client llm.Client, opts ...Option) *Engine {
	e := &Engine{
		client:       client,
		prompts:      prompts.DefaultLibrary,
		contextChars: DefaultContextChars,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Input is the work for one evolution run.
type Input struct {
	Seeds     []types.SeedQuestion
	Documents []types.DocumentInput
	Settings  types.GenerationSettings
}

// Result holds the evolved questions in fixed type order. In fast mode
// Answers and Contexts carry the inline answer and supporting passage per
// question ID.
type Result struct {
	Questions []types.EvolvedQuestion
	Answers   map[string]string
	Contexts  map[string]string
	Failures  []types.StageFailure
	Calls     int
}

// Evolve runs the consolidated call in fast mode, otherwise one call per
// requested evolution type.
func (e *Engine) Evolve(ctx context.Context, in Input) *Result {
	ctx = context.WithValue(ctx, types.ContextKeyStage, types.StageEvolution)
	if len(in.Seeds) == 0 {
		return e.noSeeds(in.Settings)
	}
	if in.Settings.FastMode {
		return e.evolveConsolidated(ctx, in)
	}
	return e.evolveByType(ctx, in)
}

func (e *Engine) noSeeds(settings types.GenerationSettings) *Result {
	res := &Result{}
	for _, t := range types.EvolutionTypes {
		if n := settings.CountFor(t); n > 0 {
			res.Failures = append(res.Failures, types.StageFailure{
				Stage:         types.StageEvolution,
				Kind:          types.FailurePermanent,
				EvolutionType: t,
				Requested:     n,
				Error:         "no seed questions available",
			})
		}
	}
	return res
}

// typeOutcome is the result of one per-type call, stored by slot.
type typeOutcome struct {
	questions []types.EvolvedQuestion
	failure   *types.StageFailure
	called    bool
}

func (e *Engine) evolveByType(ctx context.Context, in Input) *Result {
	outcomes := make([]typeOutcome, len(types.EvolutionTypes))

	run := func(slot int) {
		t := types.EvolutionTypes[slot]
		if in.Settings.CountFor(t) <= 0 {
			return
		}
		outcomes[slot] = e.evolveType(ctx, t, in)
	}

	if in.Settings.ExecutionMode == types.ExecutionSequential {
		for slot := range types.EvolutionTypes {
			run(slot)
		}
	} else {
		var g errgroup.Group
		for slot := range types.EvolutionTypes {
			g.Go(func() error {
				run(slot)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := &Result{}
	for _, o := range outcomes {
		res.Questions = append(res.Questions, o.questions...)
		if o.failure != nil {
			res.Failures = append(res.Failures, *o.failure)
		}
		if o.called {
			res.Calls++
		}
	}
	return res
}

func (e *Engine) evolveType(ctx context.Context, t types.EvolutionType, in Input) typeOutcome {
	count := in.Settings.CountFor(t)
	seeds := pickSeeds(in.Seeds, count)
	docIndices := e.documentsFor(t, seeds, in.Documents)

	pv, ok := e.prompts.Evolution().ForType(t)
	if !ok {
		return typeOutcome{failure: &types.StageFailure{
			Stage: types.StageEvolution, Kind: types.FailurePermanent, EvolutionType: t,
			Requested: count, Error: fmt.Sprintf("no prompt for %s", t),
		}}
	}
	messages, err := pv.Call(map[string]interface{}{
		"seeds":    seedTexts(seeds),
		"contexts": e.excerpts(in.Documents, docIndices),
		"count":    count,
	})
	if err != nil {
		return typeOutcome{failure: &types.StageFailure{
			Stage: types.StageEvolution, Kind: types.FailurePermanent, EvolutionType: t,
			Requested: count, Error: err.Error(),
		}}
	}

	resp, err := e.client.Generate(ctx, llm.NewRequest(messages, in.Settings.Temperature, in.Settings.MaxTokens))
	if err != nil {
		e.logger.ErrorContext(ctx, "evolution call failed", "evolution_type", t, "error", err)
		return typeOutcome{called: true, failure: &types.StageFailure{
			Stage: types.StageEvolution, Kind: llm.FailureKind(err), EvolutionType: t,
			Requested: count, Error: err.Error(),
		}}
	}

	texts := questions.ParseQuestions(resp.Content, count)
	out := typeOutcome{called: true}
	for k, text := range texts {
		seed := seeds[k%len(seeds)]
		out.questions = append(out.questions, e.newQuestion(t, text, []string{seed.ID}, e.questionDocs(t, seed, docIndices)))
	}
	if len(texts) < count {
		out.failure = shortfall(t, count, len(texts))
		e.logger.WarnContext(ctx, "evolution returned fewer questions than requested",
			"evolution_type", t, "requested", count, "produced", len(texts))
	}
	return out
}

func (e *Engine) evolveConsolidated(ctx context.Context, in Input) *Result {
	counts := make(map[types.EvolutionType]int, len(types.EvolutionTypes))
	for _, t := range types.EvolutionTypes {
		if n := in.Settings.CountFor(t); n > 0 {
			counts[t] = n
		}
	}
	total := in.Settings.TotalRequested()
	seeds := pickSeeds(in.Seeds, total)
	allDocs := make([]int, len(in.Documents))
	for i := range allDocs {
		allDocs[i] = i
	}

	failAll := func(kind, msg string) *Result {
		res := &Result{}
		for _, t := range types.EvolutionTypes {
			if counts[t] > 0 {
				res.Failures = append(res.Failures, types.StageFailure{
					Stage: types.StageEvolution, Kind: kind, EvolutionType: t,
					Requested: counts[t], Error: msg,
				})
			}
		}
		return res
	}

	messages, err := e.prompts.Evolution().Consolidated().Call(map[string]interface{}{
		"seeds":    seedTexts(seeds),
		"contexts": e.excerpts(in.Documents, allDocs),
		"counts":   counts,
	})
	if err != nil {
		return failAll(types.FailurePermanent, err.Error())
	}

	maxTokens := in.Settings.MaxTokens * total
	if maxTokens > maxConsolidatedTokens {
		maxTokens = maxConsolidatedTokens
	}
	resp, err := e.client.Generate(ctx, llm.NewRequest(messages, in.Settings.Temperature, maxTokens))
	if err != nil {
		e.logger.ErrorContext(ctx, "consolidated evolution call failed", "error", err)
		res := failAll(llm.FailureKind(err), err.Error())
		res.Calls = 1
		return res
	}

	byType := make(map[types.EvolutionType][]Item)
	for _, item := range ParseConsolidated(resp.Content) {
		if counts[item.Type] > len(byType[item.Type]) {
			byType[item.Type] = append(byType[item.Type], item)
		}
	}

	res := &Result{
		Answers:  make(map[string]string),
		Contexts: make(map[string]string),
		Calls:    1,
	}
	k := 0
	for _, t := range types.EvolutionTypes {
		for _, item := range byType[t] {
			seed := seeds[k%len(seeds)]
			k++
			q := e.newQuestion(t, item.Question, []string{seed.ID}, e.questionDocs(t, seed, allDocs))
			res.Questions = append(res.Questions, q)
			if item.Answer != "" {
				res.Answers[q.ID] = item.Answer
			}
			if item.Context != "" {
				res.Contexts[q.ID] = item.Context
			}
		}
		if got := len(byType[t]); got < counts[t] {
			res.Failures = append(res.Failures, *shortfall(t, counts[t], got))
		}
	}
	return res
}

func (e *Engine) newQuestion(t types.EvolutionType, text string, seedIDs []string, docs []int) types.EvolvedQuestion {
	return types.EvolvedQuestion{
		ID:                    e.newID(),
		Question:              text,
		EvolutionType:         t,
		ComplexityLevel:       t.ComplexityLevel(),
		SourceQuestionIDs:     seedIDs,
		SourceDocumentIndices: docs,
	}
}

// documentsFor returns the document indices whose text backs a type's prompt:
// every document for multi-context and complex, otherwise the seeds' own documents.
func (e *Engine) documentsFor(t types.EvolutionType, seeds []types.SeedQuestion, docs []types.DocumentInput) []int {
	if t == types.EvolutionMultiContext || t == types.EvolutionComplex {
		all := make([]int, len(docs))
		for i := range all {
			all[i] = i
		}
		return all
	}
	seen := make(map[int]bool)
	var out []int
	for _, s := range seeds {
		if !seen[s.SourceDocumentIndex] && s.SourceDocumentIndex < len(docs) {
			seen[s.SourceDocumentIndex] = true
			out = append(out, s.SourceDocumentIndex)
		}
	}
	return out
}

func (e *Engine) questionDocs(t types.EvolutionType, seed types.SeedQuestion, docIndices []int) []int {
	if t == types.EvolutionMultiContext || t == types.EvolutionComplex {
		return append([]int(nil), docIndices...)
	}
	return []int{seed.SourceDocumentIndex}
}

func (e *Engine) excerpts(docs []types.DocumentInput, indices []int) []string {
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		out = append(out, retrieval.Truncate(docs[i].Content, e.contextChars))
	}
	return out
}

// pickSeeds returns the seeds backing n questions: seed k for question k,
// wrapping around when there are fewer seeds than questions.
func pickSeeds(seeds []types.SeedQuestion, n int) []types.SeedQuestion {
	if n >= len(seeds) || n <= 0 {
		return seeds
	}
	return seeds[:n]
}

func seedTexts(seeds []types.SeedQuestion) []string {
	out := make([]string, len(seeds))
	for i, s := range seeds {
		out[i] = s.Text
	}
	return out
}

func shortfall(t types.EvolutionType, requested, produced int) *types.StageFailure {
	return &types.StageFailure{
		Stage:         types.StageEvolution,
		Kind:          types.FailureParsingShortfall,
		EvolutionType: t,
		Requested:     requested,
		Produced:      produced,
		Error:         fmt.Sprintf("%s: %d of %d questions recovered", types.ErrParsingShortfall, produced, requested),
	}
}
