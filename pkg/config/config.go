package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/soundprediction/go-evolsynth/pkg/retrieval"
	"github.com/soundprediction/go-evolsynth/pkg/types"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables mapped onto config keys,
// e.g. EVOLSYNTH_LLM_MODEL for llm.model.
const EnvPrefix = "EVOLSYNTH"

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// LLM configuration
	LLM LLMConfig `mapstructure:"llm"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Generation holds the settings used when a request supplies none
	Generation types.GenerationSettings `mapstructure:"generation"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LLMConfig holds the generation service configuration
type LLMConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	// PoolSize bounds in-flight generation calls across the process.
	PoolSize          int           `mapstructure:"pool_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	// RedisURL selects the networked primary. Empty means in-process only.
	RedisURL string `mapstructure:"redis_url"`
	// Fallback is the in-process backend: memory or badger.
	Fallback      string        `mapstructure:"fallback"`
	BadgerPath    string        `mapstructure:"badger_path"`
	GenerationTTL time.Duration `mapstructure:"generation_ttl"`
	ContextsTTL   time.Duration `mapstructure:"contexts_ttl"`
}

// PipelineConfig holds limits and tuning of the generation pipeline
type PipelineConfig struct {
	MaxDocuments          int              `mapstructure:"max_documents"`
	MaxContentChars       int              `mapstructure:"max_content_chars"`
	EvolutionContextChars int              `mapstructure:"evolution_context_chars"`
	ChunkSize             int              `mapstructure:"chunk_size"`
	ChunkOverlap          int              `mapstructure:"chunk_overlap"`
	Retrieval             retrieval.Config `mapstructure:"retrieval"`
}

// Load reads configuration from path (optional, any format viper supports),
// EVOLSYNTH_* environment variables and the provider variables
// OPENAI_API_KEY, OPENAI_BASE_URL and REDIS_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that cannot be corrected later.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	switch c.Cache.Fallback {
	case "memory", "badger":
	default:
		errs = append(errs, fmt.Errorf("cache.fallback must be memory or badger, got %q", c.Cache.Fallback))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if err := c.Generation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("generation defaults: %w", err))
	}
	return errors.Join(errs...)
}

// Address returns host:port for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "30s")

	// LLM defaults
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.pool_size", 8)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.breaker_failures", 5)
	v.SetDefault("llm.breaker_cooldown", "30s")

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.fallback", "memory")
	v.SetDefault("cache.badger_path", "")
	v.SetDefault("cache.generation_ttl", "1h")
	v.SetDefault("cache.contexts_ttl", "2h")

	// Pipeline defaults
	v.SetDefault("pipeline.max_documents", types.MaxDocumentsPerRequest)
	v.SetDefault("pipeline.max_content_chars", 4000)
	v.SetDefault("pipeline.evolution_context_chars", 1500)
	v.SetDefault("pipeline.chunk_size", 1000)
	v.SetDefault("pipeline.chunk_overlap", 50)
	rc := retrieval.DefaultConfig()
	v.SetDefault("pipeline.retrieval.top_sentences", rc.TopSentences)
	v.SetDefault("pipeline.retrieval.max_chars", rc.MaxChars)
	v.SetDefault("pipeline.retrieval.fallback_chars", rc.FallbackChars)
	v.SetDefault("pipeline.retrieval.top_documents", rc.TopDocuments)

	// Generation defaults
	g := types.DefaultGenerationSettings()
	v.SetDefault("generation.execution_mode", string(g.ExecutionMode))
	v.SetDefault("generation.max_base_questions_per_doc", g.MaxBaseQuestionsPerDoc)
	v.SetDefault("generation.simple_evolution_count", g.SimpleEvolutionCount)
	v.SetDefault("generation.multi_context_evolution_count", g.MultiContextEvolutionCount)
	v.SetDefault("generation.reasoning_evolution_count", g.ReasoningEvolutionCount)
	v.SetDefault("generation.complex_evolution_count", g.ComplexEvolutionCount)
	v.SetDefault("generation.temperature", g.Temperature)
	v.SetDefault("generation.max_tokens", g.MaxTokens)
	v.SetDefault("generation.fast_mode", g.FastMode)
	v.SetDefault("generation.skip_evaluation", g.SkipEvaluation)
}

// overrideWithEnv applies the conventional provider variables, which win
// over the prefixed ones.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Cache.RedisURL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			config.Server.Port = p
		}
	}
}
