// Package tokencount estimates prompt and completion token usage so the
// tokens-per-minute window can be charged before a provider call is made.
//
// It uses tiktoken-go with the offline BPE loader, so no encoding files are
// downloaded at runtime.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TokenUsage represents token counts for an LLM API call.
type TokenUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

var loaderOnce sync.Once

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) getEncodingForModel(model string) (*tiktoken.Tiktoken, error) {
	normalizedModel := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalizedModel]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[normalizedModel]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalizedModel)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.encodingCache[normalizedModel] = enc
	return enc, nil
}

// normalizeModelName maps OpenRouter-style IDs ("openai/gpt-4o-mini:free") to
// names tiktoken knows. Non-OpenAI families are approximated with gpt-4.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")
	switch {
	case strings.Contains(model, "gpt-4o"):
		return "gpt-4o"
	case strings.Contains(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	default:
		return "gpt-4"
	}
}

// CountTokens counts the tokens of text for model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountChatTokens counts a system+user chat request including the per-message
// framing overhead of OpenAI-compatible APIs.
func (c *Counter) CountChatTokens(systemPrompt, userPrompt, model string) (int, error) {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return 0, err
	}
	const tokensPerMessage, tokensPerRole = 3, 1

	n := 0
	for _, m := range [][2]string{{"system", systemPrompt}, {"user", userPrompt}} {
		n += tokensPerMessage + tokensPerRole
		n += len(enc.Encode(m[0], nil, nil))
		n += len(enc.Encode(m[1], nil, nil))
	}
	// Every reply is primed with <|start|>assistant<|message|>.
	return n + 3, nil
}

// EstimateRequest returns prompt tokens plus the completion allowance. When
// the encoding is unavailable it falls back to roughly four bytes per token.
func (c *Counter) EstimateRequest(systemPrompt, userPrompt, model string, maxCompletion int) int {
	n, err := c.CountChatTokens(systemPrompt, userPrompt, model)
	if err != nil {
		slog.Warn("failed to count prompt tokens, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		n = (len(systemPrompt) + len(userPrompt)) / 4
	}
	if maxCompletion > 0 {
		n += maxCompletion
	}
	return n
}

// CalculateUsage counts a finished exchange.
func (c *Counter) CalculateUsage(systemPrompt, userPrompt, completion, model string) TokenUsage {
	prompt, err := c.CountChatTokens(systemPrompt, userPrompt, model)
	if err != nil {
		prompt = (len(systemPrompt) + len(userPrompt)) / 4
	}
	completionTokens, err := c.CountTokens(completion, model)
	if err != nil {
		completionTokens = len(completion) / 4
	}
	return TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
		Model:            model,
	}
}
