package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soundprediction/go-evolsynth/pkg/cache"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/prompts"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxContentChars bounds the document text sent in a single extraction prompt.
const DefaultMaxContentChars = 4000

// Extractor derives seed questions from documents with one generation call per document.
type Extractor struct {
	client          llm.Client
	prompts         prompts.Library
	store           *cache.Store
	logger          *slog.Logger
	maxContentChars int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithStore caches parsed questions per document under the docs: namespace.
func WithStore(s *cache.Store) Option {
	return func(e *Extractor) { e.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithPrompts replaces the default prompt library.
func WithPrompts(p prompts.Library) Option {
	return func(e *Extractor) { e.prompts = p }
}

// WithMaxContentChars sets how much of each document is included in the prompt.
func WithMaxContentChars(n int) Option {
	return func(e *Extractor) { e.maxContentChars = n }
}

// NewExtractor creates an extractor calling client.
func NewExtractor(client llm.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:          client,
		prompts:         prompts.DefaultLibrary,
		maxContentChars: DefaultMaxContentChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Extract returns the seed questions of every document in document order.
// A document whose call fails contributes no seeds and one StageFailure.
func (e *Extractor) Extract(ctx context.Context, docs []types.DocumentInput, settings types.GenerationSettings) ([]types.SeedQuestion, []types.StageFailure) {
	perDoc := make([][]types.SeedQuestion, len(docs))
	failures := make([]*types.StageFailure, len(docs))

	run := func(i int) {
		seeds, err := e.ExtractDocument(ctx, docs[i], i, settings)
		if err != nil {
			failures[i] = documentFailure(i, settings.MaxBaseQuestionsPerDoc, len(seeds), err)
		}
		perDoc[i] = seeds
	}

	if settings.ExecutionMode == types.ExecutionSequential {
		for i := range docs {
			run(i)
		}
	} else {
		var g errgroup.Group
		for i := range docs {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	var seeds []types.SeedQuestion
	var out []types.StageFailure
	for i := range docs {
		seeds = append(seeds, perDoc[i]...)
		if failures[i] != nil {
			out = append(out, *failures[i])
		}
	}
	return seeds, out
}

// ExtractDocument extracts seeds from a single document. A response with no
// parseable question is reported as types.ErrParsingShortfall.
func (e *Extractor) ExtractDocument(ctx context.Context, doc types.DocumentInput, index int, settings types.GenerationSettings) ([]types.SeedQuestion, error) {
	content := strings.TrimSpace(doc.Content)
	if runes := []rune(content); len(runes) > e.maxContentChars {
		content = string(runes[:e.maxContentChars])
	}

	key := cache.HashKey(cache.PrefixDocuments, "base_questions", e.client.Model(),
		strconv.Itoa(settings.MaxBaseQuestionsPerDoc), content)

	var texts []string
	if e.store != nil {
		if err := e.store.GetJSON(ctx, key, &texts); err == nil && len(texts) > 0 {
			e.logger.Debug("seed questions loaded from cache", "document_index", index, "count", len(texts))
			return toSeeds(texts, index), nil
		}
	}

	messages, err := e.prompts.BaseQuestions().Extract().Call(map[string]interface{}{
		"content":       content,
		"max_questions": settings.MaxBaseQuestionsPerDoc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build base question prompt: %w", err)
	}

	ctx = context.WithValue(ctx, types.ContextKeyStage, types.StageBaseQuestions)
	resp, err := e.client.Generate(ctx, llm.NewRequest(messages, settings.Temperature, settings.MaxTokens))
	if err != nil {
		e.logger.ErrorContext(ctx, "base question extraction failed", "document_index", index, "error", err)
		return nil, fmt.Errorf("base question extraction for document %d: %w", index, err)
	}

	texts = ParseQuestions(resp.Content, settings.MaxBaseQuestionsPerDoc)
	if len(texts) == 0 {
		e.logger.WarnContext(ctx, "no parseable seed questions", "document_index", index)
		return nil, fmt.Errorf("document %d: %w: no questions in response", index, types.ErrParsingShortfall)
	}

	if e.store != nil {
		if err := e.store.SetJSON(ctx, key, texts, cache.DefaultDocumentsTTL); err != nil {
			e.logger.Warn("failed to cache seed questions", "document_index", index, "error", err)
		}
	}
	return toSeeds(texts, index), nil
}

func toSeeds(texts []string, docIndex int) []types.SeedQuestion {
	seeds := make([]types.SeedQuestion, len(texts))
	for i, t := range texts {
		seeds[i] = types.SeedQuestion{
			ID:                  fmt.Sprintf("seed_%d_%d", docIndex, i),
			Text:                t,
			SourceDocumentIndex: docIndex,
		}
	}
	return seeds
}

func documentFailure(index, requested, produced int, err error) *types.StageFailure {
	kind := llm.FailureKind(err)
	if errors.Is(err, types.ErrParsingShortfall) {
		kind = types.FailureParsingShortfall
	}
	return &types.StageFailure{
		Stage:         types.StageBaseQuestions,
		Kind:          kind,
		DocumentIndex: types.DocIndex(index),
		Requested:     requested,
		Produced:      produced,
		Error:         err.Error(),
	}
}
