package evolsynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/go-evolsynth/pkg/answer"
	"github.com/soundprediction/go-evolsynth/pkg/cache"
	"github.com/soundprediction/go-evolsynth/pkg/cost"
	"github.com/soundprediction/go-evolsynth/pkg/evaluation"
	"github.com/soundprediction/go-evolsynth/pkg/evolution"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/prompts"
	"github.com/soundprediction/go-evolsynth/pkg/questions"
	"github.com/soundprediction/go-evolsynth/pkg/retrieval"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Generator turns documents into scored evaluation datasets.
type Generator interface {
	// Generate runs the whole pipeline. Only invalid settings or documents
	// return an error; every other failure is contained and reported on the
	// result.
	Generate(ctx context.Context, docs []types.DocumentInput, settings types.GenerationSettings) (*types.GenerationResult, error)

	// Evaluate scores an existing dataset with the LLM judge.
	Evaluate(ctx context.Context, ds *types.Dataset) (*evaluation.Report, error)

	// Close releases the cache backend and the generation client.
	Close() error
}

// Client is the main implementation of the Generator interface.
type Client struct {
	llm       llm.Client
	store     *cache.Store
	retriever *retrieval.Extractor
	questions *questions.Extractor
	evolution *evolution.Engine
	answers   *answer.Generator
	evaluator *evaluation.Evaluator
	costs     *cost.Calculator
	prompts   prompts.Library
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	config    *Config
}

// Config holds configuration for the pipeline.
type Config struct {
	// Retrieval controls context snippet selection.
	Retrieval retrieval.Config
	// MaxContentChars bounds the document text sent for seed extraction.
	MaxContentChars int
	// EvolutionContextChars bounds each document excerpt sent with an evolution request.
	EvolutionContextChars int
	// MaxDocuments is the per-request document limit.
	MaxDocuments int
	// GenerationTTL and ContextsTTL are the lifetimes of cached datasets and snippets.
	GenerationTTL time.Duration
	ContextsTTL   time.Duration
}

// NewDefaultConfig returns the default pipeline configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Retrieval:             retrieval.DefaultConfig(),
		MaxContentChars:       4000,
		EvolutionContextChars: 1500,
		MaxDocuments:          types.MaxDocumentsPerRequest,
		GenerationTTL:         cache.DefaultGenerationTTL,
		ContextsTTL:           cache.DefaultContextsTTL,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithStore sets the cache. Without one the client uses a private in-process cache.
func WithStore(s *cache.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records pipeline metrics in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithPrompts replaces the default prompt library.
func WithPrompts(p prompts.Library) Option {
	return func(c *Client) { c.prompts = p }
}

// WithCostCalculator replaces the built-in price list.
func WithCostCalculator(calc *cost.Calculator) Option {
	return func(c *Client) { c.costs = calc }
}

// NewClient creates a pipeline calling llmClient for every generation. The
// client is normally an *llm.ResilientClient shared by the whole process.
func NewClient(llmClient llm.Client, config *Config, opts ...Option) *Client {
	if config == nil {
		config = NewDefaultConfig()
	}
	d := NewDefaultConfig()
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = d.MaxContentChars
	}
	if config.EvolutionContextChars <= 0 {
		config.EvolutionContextChars = d.EvolutionContextChars
	}
	if config.MaxDocuments <= 0 {
		config.MaxDocuments = d.MaxDocuments
	}
	if config.GenerationTTL <= 0 {
		config.GenerationTTL = d.GenerationTTL
	}
	if config.ContextsTTL <= 0 {
		config.ContextsTTL = d.ContextsTTL
	}

	c := &Client{
		llm:     llm.NewTokenTrackingClient(llmClient),
		config:  config,
		prompts: prompts.DefaultLibrary,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.store == nil {
		c.store = cache.NewStore(context.Background(), nil, nil,
			cache.WithStoreLogger(c.logger), cache.WithStoreMetrics(c.metrics))
	}
	if c.costs == nil {
		c.costs = cost.NewCalculator()
	}

	c.retriever = retrieval.NewExtractor(config.Retrieval)
	c.questions = questions.NewExtractor(c.llm,
		questions.WithStore(c.store),
		questions.WithLogger(c.logger),
		questions.WithPrompts(c.prompts),
		questions.WithMaxContentChars(config.MaxContentChars))
	c.evolution = evolution.NewEngine(c.llm,
		evolution.WithLogger(c.logger),
		evolution.WithPrompts(c.prompts),
		evolution.WithContextChars(config.EvolutionContextChars))
	c.answers = answer.NewGenerator(c.llm, c.prompts, c.logger)
	c.evaluator = evaluation.NewEvaluator(c.llm,
		evaluation.WithLogger(c.logger),
		evaluation.WithMetrics(c.metrics),
		evaluation.WithPrompts(c.prompts))

	return c
}

// Model returns the generation model name.
func (c *Client) Model() string {
	return c.llm.Model()
}

// Store returns the cache used by the pipeline.
func (c *Client) Store() *cache.Store {
	return c.store
}

// Generate runs the pipeline over docs.
func (c *Client) Generate(ctx context.Context, docs []types.DocumentInput, settings types.GenerationSettings) (*types.GenerationResult, error) {
	start := time.Now()
	mode := settings.ModeLabel()

	if err := settings.Validate(); err != nil {
		c.metrics.ObservePipeline(mode, "rejected", time.Since(start))
		return nil, err
	}
	if err := types.ValidateDocuments(docs, c.config.MaxDocuments); err != nil {
		c.metrics.ObservePipeline(mode, "rejected", time.Since(start))
		return nil, err
	}

	var failures []types.StageFailure

	// The pipeline and the cache work on the canonical document order; the
	// result is mapped back to the caller's order before it is returned.
	callerDocs := docs
	docs, callerIndex := canonicalOrder(callerDocs)

	// 1. Whole-run cache lookup
	key := GenerationKey(docs, settings, c.llm.Model())
	var cached types.Dataset
	switch err := c.store.GetJSON(ctx, key, &cached); {
	case err == nil:
		c.logger.InfoContext(ctx, "generation cache hit", "generation_id", cached.GenerationID, "questions", len(cached.EvolvedQuestions))
		c.metrics.ObservePipeline(mode, "cached", time.Since(start))
		localize(&cached, nil, callerDocs, callerIndex)
		return &types.GenerationResult{
			Dataset: &cached,
			Metrics: c.performance(&cached, settings, start, true, llm.TokenStats{}, 0),
		}, nil
	case !errors.Is(err, cache.ErrKeyNotFound):
		failures = append(failures, cacheFailure(err))
	}

	generationID := uuid.NewString()
	ctx = context.WithValue(ctx, types.ContextKeyGenerationID, generationID)
	tracker := llm.NewTokenTracker()
	ctx = llm.WithTokenTracker(ctx, tracker)

	c.logger.InfoContext(ctx, "generation started",
		"documents", len(docs),
		"requested", settings.TotalRequested(),
		"mode", mode,
		"execution_mode", settings.ExecutionMode)

	// 2. Seed questions, one call per document
	seeds, seedFailures := c.questions.Extract(ctx, docs, settings)
	failures = append(failures, seedFailures...)

	// 3. Evolution
	evolved := c.evolution.Evolve(ctx, evolution.Input{
		Seeds:     seeds,
		Documents: docs,
		Settings:  settings,
	})
	failures = append(failures, evolved.Failures...)

	// 4. Contexts and answers per question
	answers, contexts, answerFailures := c.answerQuestions(ctx, docs, evolved, settings)
	failures = append(failures, answerFailures...)

	ds := &types.Dataset{
		GenerationID:     generationID,
		CreatedAt:        time.Now().UTC(),
		Settings:         settings,
		EvolvedQuestions: evolved.Questions,
		QuestionAnswers:  answers,
		QuestionContexts: contexts,
	}
	if ds.EvolvedQuestions == nil {
		ds.EvolvedQuestions = []types.EvolvedQuestion{}
	}

	// 5. Evaluation
	if !settings.SkipEvaluation && len(ds.EvolvedQuestions) > 0 {
		report := c.evaluator.Evaluate(ctx, ds)
		ds.EvaluationScores = report.Scores
		ds.Evaluation = report.Summary
		failures = append(failures, report.Failures...)
	}

	// 6. Write-through
	if cacheable(failures) {
		if err := c.store.SetJSON(ctx, key, ds, c.config.GenerationTTL); err != nil {
			c.logger.WarnContext(ctx, "failed to cache dataset", "error", err)
			failures = append(failures, cacheFailure(err))
		}
	} else {
		c.logger.InfoContext(ctx, "dataset not cached because generation stages failed", "failures", len(failures))
	}

	localize(ds, failures, callerDocs, callerIndex)

	usage := tracker.Stats()
	result := &types.GenerationResult{
		Dataset:  ds,
		Metrics:  c.performance(ds, settings, start, false, usage, c.estimateCost(tracker)),
		Failures: failures,
	}

	outcome := "generated"
	for _, f := range failures {
		c.metrics.IncStageFailure(string(f.Stage), f.Kind)
		outcome = "partial"
	}
	c.metrics.ObservePipeline(mode, outcome, time.Since(start))

	c.logger.InfoContext(ctx, "generation complete",
		"questions", len(ds.EvolvedQuestions),
		"failures", len(failures),
		"calls", usage.Calls,
		"duration", time.Since(start))
	return result, nil
}

// Evaluate scores an existing dataset. Questions without an answer or
// context record are judged with empty ones.
func (c *Client) Evaluate(ctx context.Context, ds *types.Dataset) (*evaluation.Report, error) {
	if ds == nil || len(ds.EvolvedQuestions) == 0 {
		return nil, ErrEmptyDataset
	}
	for _, q := range ds.EvolvedQuestions {
		if !q.EvolutionType.Valid() {
			return nil, fmt.Errorf("%w: question %s has unknown evolution type %q", ErrInvalidDataset, q.ID, q.EvolutionType)
		}
	}
	ctx = llm.WithTokenTracker(ctx, llm.NewTokenTracker())
	report := c.evaluator.Evaluate(ctx, ds)
	for _, f := range report.Failures {
		c.metrics.IncStageFailure(string(f.Stage), f.Kind)
	}
	c.logger.InfoContext(ctx, "evaluation complete", "questions", len(ds.EvolvedQuestions), "failures", len(report.Failures))
	return report, nil
}

// ClearCache removes every entry of one namespace ("generation", "docs" or "contexts").
func (c *Client) ClearCache(ctx context.Context, namespace string) (int, error) {
	prefix := cache.NormalizePrefix(strings.ToLower(strings.TrimSpace(namespace)))
	if !slices.Contains(cache.Namespaces, prefix) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}
	return c.store.DeleteByPrefix(ctx, prefix)
}

// CacheStats reports cache usage.
func (c *Client) CacheStats(ctx context.Context) (cache.StoreStats, error) {
	return c.store.Stats(ctx)
}

// Close releases the cache and the generation client.
func (c *Client) Close() error {
	return errors.Join(c.store.Close(), c.llm.Close())
}

// answerQuestions builds the context record and the answer of every evolved
// question concurrently. Results are collected by slot so they follow the
// question order.
func (c *Client) answerQuestions(ctx context.Context, docs []types.DocumentInput, evolved *evolution.Result, settings types.GenerationSettings) ([]types.QuestionAnswer, []types.QuestionContext, []types.StageFailure) {
	n := len(evolved.Questions)
	answers := make([]types.QuestionAnswer, n)
	contexts := make([]types.QuestionContext, n)
	failed := make([]*types.StageFailure, n)

	var g errgroup.Group
	for i, q := range evolved.Questions {
		g.Go(func() error {
			qc := c.contextFor(ctx, q, docs, evolved.Contexts[q.ID], settings)
			contexts[i] = qc

			text, err := c.answerFor(ctx, q, qc, evolved.Answers[q.ID], settings)
			answers[i] = types.QuestionAnswer{QuestionID: q.ID, Answer: text}
			if err != nil {
				failed[i] = &types.StageFailure{
					Stage:         types.StageAnswer,
					Kind:          llm.FailureKind(err),
					EvolutionType: q.EvolutionType,
					QuestionID:    q.ID,
					Error:         err.Error(),
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []types.StageFailure
	for _, f := range failed {
		if f != nil {
			failures = append(failures, *f)
		}
	}
	return answers, contexts, failures
}

// contextFor returns the snippets for q. A passage returned inline by the
// consolidated fast-mode call is used as-is; otherwise the snippets come from
// the local extractor, cached per question and document set.
func (c *Client) contextFor(ctx context.Context, q types.EvolvedQuestion, docs []types.DocumentInput, inline string, settings types.GenerationSettings) types.QuestionContext {
	if settings.FastMode {
		if inline = strings.TrimSpace(inline); inline != "" {
			return types.QuestionContext{
				QuestionID: q.ID,
				Contexts: []types.ContextSnippet{{
					Text:          retrieval.Truncate(inline, c.retriever.Config().MaxChars),
					Source:        inlineSource,
					DocumentIndex: firstIndex(q.SourceDocumentIndices),
				}},
			}
		}
	}

	key := c.contextsKey(q.Question, docs)
	var snippets []types.ContextSnippet
	if err := c.store.GetJSON(ctx, key, &snippets); err == nil && len(snippets) > 0 {
		return types.QuestionContext{QuestionID: q.ID, Contexts: snippets}
	}

	snippets = c.retriever.ExtractForQuestion(q.Question, docs)
	if err := c.store.SetJSON(ctx, key, snippets, c.config.ContextsTTL); err != nil {
		c.logger.WarnContext(ctx, "failed to cache contexts", "question_id", q.ID, "error", err)
	}
	return types.QuestionContext{QuestionID: q.ID, Contexts: snippets}
}

func (c *Client) answerFor(ctx context.Context, q types.EvolvedQuestion, qc types.QuestionContext, inline string, settings types.GenerationSettings) (string, error) {
	if settings.FastMode {
		if cleaned := answer.Clean(inline); cleaned != "" {
			return cleaned, nil
		}
		c.logger.DebugContext(ctx, "no inline answer, generating one", "question_id", q.ID)
	}
	return c.answers.Answer(ctx, q.Question, qc.Texts(), settings)
}

func (c *Client) contextsKey(question string, docs []types.DocumentInput) string {
	cfg := c.retriever.Config()
	parts := []string{
		question,
		fmt.Sprintf("%d/%d/%d/%d", cfg.TopSentences, cfg.MaxChars, cfg.FallbackChars, cfg.TopDocuments),
	}
	for i, d := range docs {
		parts = append(parts, d.SourceName(i), normalizeContent(d.Content))
	}
	return cache.HashKey(cache.PrefixContexts, parts...)
}

func (c *Client) performance(ds *types.Dataset, settings types.GenerationSettings, start time.Time, hit bool, usage llm.TokenStats, costUSD float64) types.PerformanceMetrics {
	elapsed := time.Since(start).Seconds()
	m := types.PerformanceMetrics{
		ExecutionTimeSeconds: elapsed,
		QuestionsRequested:   settings.TotalRequested(),
		QuestionsGenerated:   len(ds.EvolvedQuestions),
		ExecutionMode:        settings.ExecutionMode,
		FastMode:             settings.FastMode,
		CacheHit:             hit,
		GenerationCalls:      usage.Calls,
		PromptTokens:         usage.PromptTokens,
		CompletionTokens:     usage.CompletionTokens,
		EstimatedCostUSD:     costUSD,
	}
	for _, qa := range ds.QuestionAnswers {
		if qa.Answer != types.AnswerUnavailable {
			m.AnswersGenerated++
		}
	}
	for _, qc := range ds.QuestionContexts {
		m.ContextsExtracted += len(qc.Contexts)
	}
	if elapsed > 0 {
		m.QuestionsPerSecond = float64(m.QuestionsGenerated) / elapsed
	}
	return m
}

func (c *Client) estimateCost(tracker *llm.TokenTracker) float64 {
	usage := make(map[string]cost.Usage)
	for model, st := range tracker.ByModel() {
		usage[model] = cost.Usage{PromptTokens: st.PromptTokens, CompletionTokens: st.CompletionTokens}
	}
	return c.costs.Total(usage)
}

func cacheable(failures []types.StageFailure) bool {
	for _, f := range failures {
		if f.BlocksCaching() {
			return false
		}
	}
	return true
}

func cacheFailure(err error) types.StageFailure {
	return types.StageFailure{
		Stage: types.StageCache,
		Kind:  types.FailureCacheUnavailable,
		Error: err.Error(),
	}
}

func firstIndex(indices []int) int {
	if len(indices) == 0 {
		return 0
	}
	return indices[0]
}

var (
	// ErrEmptyDataset is returned when a dataset to evaluate has no questions.
	ErrEmptyDataset = errors.New("dataset has no questions")
	// ErrInvalidDataset is returned when a dataset to evaluate is malformed.
	ErrInvalidDataset = errors.New("invalid dataset")
	// ErrUnknownNamespace is returned for cache namespaces other than generation, docs and contexts.
	ErrUnknownNamespace = errors.New("unknown cache namespace")
)
