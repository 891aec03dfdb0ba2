package llm

import (
	"context"
	"time"
)

// Client is the text generation service every pipeline stage calls through.
// Implementations must be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Model returns the model identifier used for requests.
	Model() string

	Close() error
}

// Role of a chat message author. Prompts only ever send system and user turns.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage returns a system turn.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage returns a user turn.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Exchange is the system-then-user pair every prompt in the pipeline sends.
func Exchange(system, user string) []Message {
	return []Message{NewSystemMessage(system), NewUserMessage(user)}
}

// Request is one generation call.
type Request struct {
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// JSONMode asks the provider for a JSON object response where supported.
	JSONMode bool `json:"json_mode,omitempty"`
	// Timeout overrides the per-call timeout of the resilient client.
	Timeout time.Duration `json:"-"`
}

// NewRequest builds a request from messages with the given sampling settings.
func NewRequest(messages []Message, temperature float64, maxTokens int) *Request {
	t := float32(temperature)
	return &Request{
		Messages:    messages,
		Temperature: &t,
		MaxTokens:   maxTokens,
	}
}

// Response is a completion. TokensUsed is nil when the provider reports no usage.
type Response struct {
	Content      string      `json:"content"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
}

// TokenUsage counts the tokens of one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
