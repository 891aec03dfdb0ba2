package llm

import "time"

// Default configuration values
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7

	DefaultTimeout        = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 8 * time.Second
	DefaultPoolSize       = 8
)

// LLMConfig holds configuration for the provider client.
type LLMConfig struct {
	// APIKey is the authentication key for accessing the LLM API
	APIKey string `json:"api_key,omitempty"`

	// Model is the specific LLM model to use for generating responses
	Model string `json:"model,omitempty"`

	// BaseURL is the base URL of an OpenAI-compatible service. Empty means api.openai.com.
	BaseURL string `json:"base_url,omitempty"`

	// Temperature controls randomness in generation (0.0 to 2.0)
	Temperature float32 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`
}

// NewLLMConfig creates a new LLMConfig with default values
func NewLLMConfig() *LLMConfig {
	return &LLMConfig{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// WithAPIKey sets the API key
func (c *LLMConfig) WithAPIKey(apiKey string) *LLMConfig {
	c.APIKey = apiKey
	return c
}

// WithModel sets the model
func (c *LLMConfig) WithModel(model string) *LLMConfig {
	c.Model = model
	return c
}

// WithBaseURL sets the base URL
func (c *LLMConfig) WithBaseURL(baseURL string) *LLMConfig {
	c.BaseURL = baseURL
	return c
}

// WithTemperature sets the temperature
func (c *LLMConfig) WithTemperature(temperature float32) *LLMConfig {
	c.Temperature = temperature
	return c
}

// WithMaxTokens sets the max tokens
func (c *LLMConfig) WithMaxTokens(maxTokens int) *LLMConfig {
	c.MaxTokens = maxTokens
	return c
}

// ResilienceConfig controls timeouts, retries, rate limiting and circuit breaking.
type ResilienceConfig struct {
	// Timeout bounds each individual attempt once it holds a pool slot.
	Timeout time.Duration `json:"timeout"`
	// MaxAttempts is the total number of attempts for transient failures.
	MaxAttempts    int           `json:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
	Multiplier     float64       `json:"multiplier"`
	Jitter         float64       `json:"jitter"`

	// RequestsPerSecond limits call starts. Zero disables the limiter.
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`

	// BreakerFailures consecutive transient failures open the circuit for BreakerCooldown.
	BreakerFailures uint32        `json:"breaker_failures"`
	BreakerCooldown time.Duration `json:"breaker_cooldown"`
}

// DefaultResilienceConfig returns the production defaults.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:         DefaultTimeout,
		MaxAttempts:     DefaultMaxAttempts,
		InitialBackoff:  DefaultInitialBackoff,
		MaxBackoff:      DefaultMaxBackoff,
		Multiplier:      2.0,
		Jitter:          0.2,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

func (c ResilienceConfig) withDefaults() ResilienceConfig {
	d := DefaultResilienceConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = d.Jitter
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = d.BreakerCooldown
	}
	return c
}
