// Package real implements the outbound AI caller backed by the OpenRouter
// chat completions API (OpenAI-compatible).
package real

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/lead-intel/internal/adapter/ai"
	"github.com/fairyhunter13/lead-intel/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/lead-intel/internal/adapter/observability"
	"github.com/fairyhunter13/lead-intel/internal/config"
	"github.com/fairyhunter13/lead-intel/internal/domain"
	obsctx "github.com/fairyhunter13/lead-intel/internal/observability"
)

const providerName = "openrouter"

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat status %d", e.Code)
}

// Transient reports whether the call may succeed when repeated.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client implements domain.OutboundCaller with one HTTP request per Call.
// Retry, timeout and rate limiting belong to the caller.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	counter *tokencount.Counter
	cleaner *ai.ResponseCleaner
}

// readSnippet reads up to n bytes from r for logging.
func readSnippet(r io.Reader, n int) string {
	if r == nil || n <= 0 {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, int64(n)))
	return string(b)
}

// New constructs a client. The HTTP timeout is a backstop; attempts are
// normally bounded by the caller's context.
func New(cfg config.Config, counter *tokencount.Counter) *Client {
	timeout := 2 * cfg.AITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if counter == nil {
		counter = tokencount.NewCounter()
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: timeout},
		counter: counter,
		cleaner: ai.NewResponseCleaner(),
	}
}

// Provider names the upstream for logs and metrics.
func (c *Client) Provider() string { return providerName }

// EstimateTokens returns the prompt tokens plus the completion allowance for a call.
func (c *Client) EstimateTokens(kind domain.OperationKind, payload any) int {
	sys, err := systemPrompt(kind)
	if err != nil {
		return 0
	}
	user, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return c.counter.EstimateRequest(sys, string(user), c.cfg.OpenRouterModel, c.cfg.AIMaxTokens)
}

// Call sends payload for kind and returns the cleaned JSON document the model produced.
// Client errors other than 429 are wrapped in backoff.Permanent so retry stops early.
func (c *Client) Call(ctx domain.Context, kind domain.OperationKind, payload any) (json.RawMessage, error) {
	lg := obsctx.LoggerFromContext(ctx)
	if c.cfg.OpenRouterAPIKey == "" {
		lg.Error("OpenRouter API key missing", slog.String("provider", providerName))
		return nil, backoff.Permanent(fmt.Errorf("%w: OPENROUTER_API_KEY missing", domain.ErrInvalidArgument))
	}
	sys, err := systemPrompt(kind)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	user, err := json.Marshal(payload)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: payload not serializable: %v", domain.ErrInvalidArgument, err))
	}

	body := map[string]any{
		"model":           c.cfg.OpenRouterModel,
		"temperature":     0.2,
		"max_tokens":      c.cfg.AIMaxTokens,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": sys},
			{"role": "user", "content": string(user)},
		},
	}
	b, _ := json.Marshal(body)
	endpoint := c.cfg.OpenRouterBaseURL + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("op=real.Call: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterAPIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.OpenRouterReferer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.OpenRouterReferer)
	}
	if c.cfg.OpenRouterTitle != "" {
		req.Header.Set("X-Title", c.cfg.OpenRouterTitle)
	}
	if rid := obsctx.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Request-Id", rid)
	}
	if op, ok := obsctx.OperationFromContext(ctx); ok {
		req.Header.Set("X-AI-Request-Id", op.AIRequestID)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if c.cfg.MonitoringEnabled {
		observability.ObserveAIRequest(providerName, string(kind), time.Since(start))
	}
	if err != nil {
		lg.Warn("ai provider request failed",
			slog.String("provider", providerName),
			slog.String("op", string(kind)),
			slog.Any("error", err))
		return nil, fmt.Errorf("op=real.Call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode, Body: readSnippet(resp.Body, 512)}
		lg.Warn("ai provider non-2xx",
			slog.String("provider", providerName),
			slog.String("op", string(kind)),
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.cfg.OpenRouterModel),
			slog.String("endpoint", endpoint),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
			slog.String("body", se.Body))
		if se.Transient() {
			return nil, se
		}
		return nil, backoff.Permanent(se)
	}

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		lg.Error("ai provider decode error",
			slog.String("provider", providerName),
			slog.String("op", string(kind)),
			slog.Any("error", err))
		return nil, fmt.Errorf("op=real.Call: decode: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, errors.New("op=real.Call: empty choices from OpenRouter API")
	}
	content := out.Choices[0].Message.Content

	raw, err := c.cleaner.CleanAndValidateJSON(content)
	if err != nil {
		lg.Warn("ai provider returned non-JSON content",
			slog.String("provider", providerName),
			slog.String("op", string(kind)),
			slog.Int("content_length", len(content)))
		return nil, fmt.Errorf("op=real.Call: %w", err)
	}

	usage := c.counter.CalculateUsage(sys, string(user), content, c.cfg.OpenRouterModel)
	if out.Usage != nil {
		usage.PromptTokens = out.Usage.PromptTokens
		usage.CompletionTokens = out.Usage.CompletionTokens
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	if c.cfg.MonitoringEnabled {
		observability.RecordAITokenUsage(providerName, "prompt", usage.PromptTokens)
		observability.RecordAITokenUsage(providerName, "completion", usage.CompletionTokens)
	}
	if out.Model != "" && out.Model != c.cfg.OpenRouterModel {
		lg.Debug("model substitution detected",
			slog.String("requested_model", c.cfg.OpenRouterModel),
			slog.String("actual_model", out.Model))
	}
	lg.Debug("OpenRouter API call successful",
		slog.String("provider", providerName),
		slog.String("op", string(kind)),
		slog.Int("prompt_tokens", usage.PromptTokens),
		slog.Int("completion_tokens", usage.CompletionTokens),
		slog.Duration("duration", time.Since(start)))
	return raw, nil
}
