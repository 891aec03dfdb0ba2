package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soundprediction/go-evolsynth/pkg/config"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "REDIS_URL", "PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, "memory", cfg.Cache.Fallback)
	assert.Equal(t, time.Hour, cfg.Cache.GenerationTTL)
	assert.Equal(t, 1500, cfg.Pipeline.Retrieval.MaxChars)
	assert.Equal(t, types.DefaultGenerationSettings(), cfg.Generation)
	assert.Equal(t, "localhost:8080", cfg.Address())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "evolsynth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: gpt-4o
  timeout: 45s
cache:
  fallback: badger
generation:
  execution_mode: sequential
  complex_evolution_count: 0
  fast_mode: true
`), 0o644))

	t.Setenv("EVOLSYNTH_SERVER_PORT", "9090")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "badger", cfg.Cache.Fallback)
	assert.Equal(t, types.ExecutionSequential, cfg.Generation.ExecutionMode)
	assert.Equal(t, 0, cfg.Generation.ComplexEvolutionCount)
	assert.True(t, cfg.Generation.FastMode)
	assert.Equal(t, 3, cfg.Generation.SimpleEvolutionCount)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  fallback: disk\ngeneration:\n  max_tokens: 50\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.fallback")
	assert.ErrorIs(t, err, types.ErrInvalidSettings)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
