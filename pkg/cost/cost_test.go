package cost_test

import (
	"testing"

	"github.com/soundprediction/go-evolsynth/pkg/cost"
	"github.com/stretchr/testify/assert"
)

func TestCalculatorCost(t *testing.T) {
	c := cost.NewCalculator()

	tests := []struct {
		name       string
		model      string
		prompt     int
		completion int
		want       float64
	}{
		{"exact model", "gpt-4o-mini", 1_000_000, 1_000_000, 0.75},
		{"dated snapshot uses longest prefix", "gpt-4o-mini-2024-07-18", 2_000_000, 0, 0.30},
		{"case insensitive", "GPT-4o", 0, 1_000_000, 10.00},
		{"unknown model is free", "llama3:8b", 5_000, 5_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, c.Cost(tt.model, tt.prompt, tt.completion), 1e-9)
		})
	}
}

func TestCalculatorSetPriceAndTotal(t *testing.T) {
	c := cost.NewCalculator()
	c.SetPrice("Local-Model", cost.Price{Input: 1, Output: 2})

	p, ok := c.PriceFor("local-model")
	assert.True(t, ok)
	assert.Equal(t, cost.Price{Input: 1, Output: 2}, p)
	assert.Contains(t, c.Models(), "local-model")

	total := c.Total(map[string]cost.Usage{
		"local-model": {PromptTokens: 1_000_000, CompletionTokens: 500_000},
		"gpt-4o-mini": {PromptTokens: 1_000_000},
	})
	assert.InDelta(t, 2.15, total, 1e-9)
}
