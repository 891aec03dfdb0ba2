package llm

import (
	"context"
	"sync"
)

type usageTrackerKey struct{}

// TokenStats tracks token usage
type TokenStats struct {
	Calls            int `json:"calls"`
	FailedCalls      int `json:"failed_calls"`
	TotalTokens      int `json:"total_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TokenTracker accumulates usage for one pipeline run, per model.
type TokenTracker struct {
	mu      sync.Mutex
	total   TokenStats
	byModel map[string]TokenStats
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{byModel: make(map[string]TokenStats)}
}

// WithTokenTracker attaches t to ctx so every call made with ctx is accounted to it.
func WithTokenTracker(ctx context.Context, t *TokenTracker) context.Context {
	return context.WithValue(ctx, usageTrackerKey{}, t)
}

// TokenTrackerFromContext returns the tracker attached to ctx, if any.
func TokenTrackerFromContext(ctx context.Context) *TokenTracker {
	t, _ := ctx.Value(usageTrackerKey{}).(*TokenTracker)
	return t
}

// AddUsage records one provider call.
func (t *TokenTracker) AddUsage(model string, usage *TokenUsage, failed bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.byModel[model]
	for _, st := range []*TokenStats{&t.total, &s} {
		st.Calls++
		if failed {
			st.FailedCalls++
		}
		if usage != nil {
			st.TotalTokens += usage.TotalTokens
			st.PromptTokens += usage.PromptTokens
			st.CompletionTokens += usage.CompletionTokens
		}
	}
	t.byModel[model] = s
}

// Stats returns the totals across models.
func (t *TokenTracker) Stats() TokenStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ByModel returns a copy of the per-model totals.
func (t *TokenTracker) ByModel() map[string]TokenStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]TokenStats, len(t.byModel))
	for k, v := range t.byModel {
		out[k] = v
	}
	return out
}

// TokenTrackingClient wraps a Client and records every provider call in the
// tracker carried by the request context.
type TokenTrackingClient struct {
	client Client
}

// NewTokenTrackingClient creates a wrapper client
func NewTokenTrackingClient(client Client) *TokenTrackingClient {
	return &TokenTrackingClient{client: client}
}

// Generate implements Client
func (c *TokenTrackingClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.client.Generate(ctx, req)
	tracker := TokenTrackerFromContext(ctx)
	if err != nil {
		tracker.AddUsage(c.client.Model(), nil, true)
		return nil, err
	}
	tracker.AddUsage(c.client.Model(), resp.TokensUsed, false)
	return resp, nil
}

// Model implements Client
func (c *TokenTrackingClient) Model() string {
	return c.client.Model()
}

// Close implements Client
func (c *TokenTrackingClient) Close() error {
	return c.client.Close()
}
