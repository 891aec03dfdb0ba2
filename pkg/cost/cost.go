package cost

import (
	"sort"
	"strings"
	"sync"
)

// Price is the cost per 1M tokens in USD.
type Price struct {
	Input  float64 `json:"input" mapstructure:"input"`
	Output float64 `json:"output" mapstructure:"output"`
}

// Calculator estimates the cost of generation calls from token counts.
type Calculator struct {
	mu     sync.RWMutex
	prices map[string]Price
}

// NewCalculator returns a calculator loaded with the built-in price list.
func NewCalculator() *Calculator {
	c := &Calculator{prices: make(map[string]Price, len(defaultPrices))}
	for model, p := range defaultPrices {
		c.prices[model] = p
	}
	return c
}

// SetPrice adds or replaces the price of a model.
func (c *Calculator) SetPrice(model string, p Price) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[strings.ToLower(model)] = p
}

// PriceFor returns the price of model. Unknown models match the longest known
// prefix (so "gpt-4o-mini-2024-07-18" prices as "gpt-4o-mini"), else zero.
func (c *Calculator) PriceFor(model string) (Price, bool) {
	model = strings.ToLower(model)
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.prices[model]; ok {
		return p, true
	}
	best := ""
	for known := range c.prices {
		if strings.HasPrefix(model, known) && len(known) > len(best) {
			best = known
		}
	}
	if best == "" {
		return Price{}, false
	}
	return c.prices[best], true
}

// Cost returns the estimated USD cost of one or more calls.
func (c *Calculator) Cost(model string, promptTokens, completionTokens int) float64 {
	p, _ := c.PriceFor(model)
	return float64(promptTokens)/1_000_000*p.Input + float64(completionTokens)/1_000_000*p.Output
}

// Usage is the token count of one model within a run.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total sums the cost of every model in usage.
func (c *Calculator) Total(usage map[string]Usage) float64 {
	models := make([]string, 0, len(usage))
	for m := range usage {
		models = append(models, m)
	}
	sort.Strings(models)

	total := 0.0
	for _, m := range models {
		u := usage[m]
		total += c.Cost(m, u.PromptTokens, u.CompletionTokens)
	}
	return total
}

// Models lists the models with a known price.
func (c *Calculator) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.prices))
	for m := range c.prices {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

var defaultPrices = map[string]Price{
	// OpenAI
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4.1":       {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini":  {Input: 0.40, Output: 1.60},
	"gpt-4.1-nano":  {Input: 0.10, Output: 0.40},
	"gpt-4-turbo":   {Input: 10.00, Output: 30.00},
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
	"o1-mini":       {Input: 3.00, Output: 12.00},

	// Anthropic
	"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
	"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
	"claude-3-opus":     {Input: 15.00, Output: 75.00},

	// Together AI serverless
	"meta-llama/llama-3.3-70b-instruct-turbo":      {Input: 0.88, Output: 0.88},
	"meta-llama/meta-llama-3.1-8b-instruct-turbo":  {Input: 0.18, Output: 0.18},
	"qwen/qwen2.5-72b-instruct-turbo":              {Input: 1.20, Output: 1.20},
	"mistralai/mixtral-8x7b-instruct-v0.1":         {Input: 0.60, Output: 0.60},
	"deepseek-ai/deepseek-v3":                      {Input: 1.25, Output: 1.25},
}
