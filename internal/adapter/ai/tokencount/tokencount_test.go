package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	tests := []struct {
		name     string
		text     string
		model    string
		minCount int
		maxCount int
	}{
		{name: "simple text with gpt-4", text: "Hello, world!", model: "gpt-4", minCount: 3, maxCount: 5},
		{name: "longer text", text: "The quick brown fox jumps over the lazy dog.", model: "gpt-3.5-turbo", minCount: 8, maxCount: 12},
		{name: "openrouter id", text: "Hello, world!", model: "meta-llama/llama-3.1-8b-instruct:free", minCount: 3, maxCount: 5},
		{name: "empty", text: "", model: "openai/gpt-4o-mini", minCount: 0, maxCount: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			count, err := counter.CountTokens(tt.text, tt.model)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, tt.minCount)
			assert.LessOrEqual(t, count, tt.maxCount)
		})
	}
}

func TestCountChatTokens_IncludesOverhead(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	plain, err := c.CountTokens("score these leads", "gpt-4")
	require.NoError(t, err)
	chat, err := c.CountChatTokens("", "score these leads", "gpt-4")
	require.NoError(t, err)
	assert.Greater(t, chat, plain)
}

func TestEstimateRequest(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	base := c.EstimateRequest("sys", "user text", "gpt-4", 0)
	assert.Greater(t, base, 0)
	assert.Equal(t, base+500, c.EstimateRequest("sys", "user text", "gpt-4", 500))
}

func TestCalculateUsage(t *testing.T) {
	t.Parallel()
	u := NewCounter().CalculateUsage("sys", "hello there", `{"ok":true}`, "openai/gpt-4o-mini")
	assert.Equal(t, u.PromptTokens+u.CompletionTokens, u.TotalTokens)
	assert.Greater(t, u.CompletionTokens, 0)
	assert.Equal(t, "openai/gpt-4o-mini", u.Model)
}

func TestNormalizeModelName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gpt-4o", normalizeModelName("openai/gpt-4o-mini"))
	assert.Equal(t, "gpt-3.5-turbo", normalizeModelName("GPT-3.5-Turbo"))
	assert.Equal(t, "gpt-4", normalizeModelName("mistralai/mistral-7b-instruct:free"))
}
