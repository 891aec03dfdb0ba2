package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the Client interface for OpenAI and any OpenAI-compatible API,
// including Ollama, LocalAI and vLLM.
type OpenAIClient struct {
	client *openai.Client
	config LLMConfig
}

// NewOpenAIClient creates a new client. An empty BaseURL targets api.openai.com.
//
// Example usage:
//
//	// Ollama local instance
//	client, err := llm.NewOpenAIClient(llm.NewLLMConfig().
//		WithBaseURL("http://localhost:11434").
//		WithModel("llama3.1:8b"))
func NewOpenAIClient(config *LLMConfig) (*OpenAIClient, error) {
	if config == nil {
		config = NewLLMConfig()
	}
	cfg := *config
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	apiKey := cfg.APIKey
	if apiKey == "" && cfg.BaseURL != "" {
		// Local services usually don't require authentication
		apiKey = "dummy-key"
	}
	clientConfig := openai.DefaultConfig(apiKey)

	if cfg.BaseURL != "" {
		parsedURL, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid baseURL format: %w", err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return nil, fmt.Errorf("baseURL must use http:// or https:// scheme")
		}
		base := strings.TrimRight(cfg.BaseURL, "/")
		if !hasAPIPath(base) {
			base += "/v1"
		}
		clientConfig.BaseURL = base
	} else if apiKey == "" {
		return nil, fmt.Errorf("api key is required when no base URL is configured")
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Generate sends a chat completion request.
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildChatRequest(req))
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyError(ctx.Err())
		}
		return nil, classifyError(fmt.Errorf("openai chat completion failed: %w", err))
	}

	if len(resp.Choices) == 0 {
		return nil, NewPermanentError(fmt.Errorf("%w: no choices returned", ErrMalformedResponse))
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, NewPermanentError(fmt.Errorf("%w: empty content (finish reason %q)", ErrMalformedResponse, choice.FinishReason))
	}

	response := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}
	if resp.Usage.TotalTokens > 0 {
		response.TokensUsed = &TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return response, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.config.Model
}

// Close cleans up resources (no-op for OpenAI client).
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) buildChatRequest(req *Request) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	out := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    openaiMessages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.JSONMode {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

// hasAPIPath checks if the base URL already includes an API path component.
func hasAPIPath(baseURL string) bool {
	for _, path := range []string{"/v1", "/api", "/openai"} {
		if strings.HasSuffix(baseURL, path) {
			return true
		}
	}
	return false
}
