package llm

import (
	"context"
	"sync"
)

// HandlerFunc produces a response for a scripted request.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// ScriptedClient is an in-process Client driven by a handler function.
// It records every request it receives.
type ScriptedClient struct {
	model   string
	handler HandlerFunc

	mu    sync.Mutex
	calls []*Request
}

// NewScriptedClient creates a scripted client for model.
func NewScriptedClient(model string, handler HandlerFunc) *ScriptedClient {
	return &ScriptedClient{
		model:   model,
		handler: handler,
	}
}

// StaticResponse returns a handler answering every request with content.
func StaticResponse(content string) HandlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Content: content}, nil
	}
}

// Generate implements Client
func (c *ScriptedClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.handler(ctx, req)
}

// Calls returns the requests received so far.
func (c *ScriptedClient) Calls() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Request, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns the number of requests received.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// Model implements Client
func (c *ScriptedClient) Model() string {
	return c.model
}

// Close implements Client
func (c *ScriptedClient) Close() error {
	return nil
}

// LastUserMessage returns the content of the final user message in req.
func LastUserMessage(req *Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
