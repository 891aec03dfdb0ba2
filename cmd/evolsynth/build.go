package evolsynth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/go-evolsynth"
	"github.com/soundprediction/go-evolsynth/pkg/cache"
	"github.com/soundprediction/go-evolsynth/pkg/config"
	"github.com/soundprediction/go-evolsynth/pkg/llm"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
)

// newPipeline wires the provider, the resilience layer, the cache and the
// pipeline from cfg. dryRun replaces the provider with canned responses.
func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics, dryRun bool) (*evolsynth.Client, error) {
	var provider llm.Client
	if dryRun {
		provider = llm.NewScriptedClient(cfg.LLM.Model, dryRunHandler)
	} else {
		p, err := llm.NewOpenAIClient(llm.NewLLMConfig().
			WithAPIKey(cfg.LLM.APIKey).
			WithModel(cfg.LLM.Model).
			WithBaseURL(cfg.LLM.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		provider = p
	}

	pool := llm.NewPool(llm.PoolSizeFromEnv(cfg.LLM.PoolSize))
	resilient := llm.NewResilientClient(provider, pool, llm.ResilienceConfig{
		Timeout:           cfg.LLM.Timeout,
		MaxAttempts:       cfg.LLM.MaxAttempts,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		BreakerFailures:   cfg.LLM.BreakerFailures,
		BreakerCooldown:   cfg.LLM.BreakerCooldown,
	}, llm.WithMetrics(metrics), llm.WithLogger(logger))

	store, err := newStore(ctx, cfg.Cache, logger, metrics)
	if err != nil {
		_ = resilient.Close()
		return nil, err
	}

	return evolsynth.NewClient(resilient, &evolsynth.Config{
		Retrieval:             cfg.Pipeline.Retrieval,
		MaxContentChars:       cfg.Pipeline.MaxContentChars,
		EvolutionContextChars: cfg.Pipeline.EvolutionContextChars,
		MaxDocuments:          cfg.Pipeline.MaxDocuments,
		GenerationTTL:         cfg.Cache.GenerationTTL,
		ContextsTTL:           cfg.Cache.ContextsTTL,
	},
		evolsynth.WithStore(store),
		evolsynth.WithLogger(logger),
		evolsynth.WithMetrics(metrics),
	), nil
}

// newStore probes Redis when configured and falls back to the in-process backend.
func newStore(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger, metrics *telemetry.Metrics) (*cache.Store, error) {
	var fallback cache.Backend
	switch cfg.Fallback {
	case "badger":
		b, err := cache.NewBadgerBackend(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		fallback = b
	default:
		fallback = cache.NewMemoryBackend()
	}

	var primary cache.Backend
	if cfg.RedisURL != "" {
		r, err := cache.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			logger.Warn("ignoring invalid redis URL", "error", err)
		} else {
			primary = r
		}
	}

	return cache.NewStore(ctx, primary, fallback,
		cache.WithStoreLogger(logger),
		cache.WithStoreMetrics(metrics)), nil
}
