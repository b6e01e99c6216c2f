package real

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/lead-intel/internal/adapter/ai"
	"github.com/fairyhunter13/lead-intel/internal/config"
	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/internal/observability"
)

type chatReq struct {
	Model          string              `json:"model"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat map[string]string   `json:"response_format"`
	Messages       []map[string]string `json:"messages"`
}

func testConfig(url string) config.Config {
	return config.Config{
		AppEnv:            "test",
		OpenRouterAPIKey:  "k",
		OpenRouterBaseURL: url,
		OpenRouterModel:   "openai/gpt-4o-mini",
		OpenRouterTitle:   "Lead Intelligence",
		AIMaxTokens:       256,
		AITimeout:         5 * time.Second,
	}
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"model":   "openai/gpt-4o-mini",
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		"usage":   map[string]any{"prompt_tokens": 120, "completion_tokens": 30},
	}
}

func TestCall_SendsChatRequestAndCleansContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "Lead Intelligence", r.Header.Get("X-Title"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))
		assert.Equal(t, "air-9", r.Header.Get("X-AI-Request-Id"))

		var cr chatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cr))
		assert.Equal(t, "openai/gpt-4o-mini", cr.Model)
		assert.Equal(t, 256, cr.MaxTokens)
		assert.Equal(t, "json_object", cr.ResponseFormat["type"])
		require.Len(t, cr.Messages, 2)
		assert.Contains(t, cr.Messages[0]["content"], "spoken CRM commands")
		assert.JSONEq(t, `{"text":"log a call with Jane"}`, cr.Messages[1]["content"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse("```json\n{\"intent\":\"log_call\",\"entities\":{},\"confidence\":0.9}\n```"))
	}))
	defer ts.Close()

	c := New(testConfig(ts.URL), nil)
	ctx := observability.ContextWithRequestID(context.Background(), "req-1")
	ctx = observability.WithOperation(ctx, observability.Operation{Name: string(domain.OpVoiceCommand), AIRequestID: "air-9"})
	raw, err := c.Call(ctx, domain.OpVoiceCommand, map[string]string{"text": "log a call with Jane"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"log_call","entities":{},"confidence":0.9}`, string(raw))
}

func TestCall_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"rate limited is transient", http.StatusTooManyRequests, false},
		{"server error is transient", http.StatusBadGateway, false},
		{"bad request is permanent", http.StatusBadRequest, true},
		{"unauthorized is permanent", http.StatusUnauthorized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer ts.Close()

			_, err := New(testConfig(ts.URL), nil).Call(context.Background(), domain.OpLeadScoring, map[string]any{"leads": []any{}})
			require.Error(t, err)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.Code)
			assert.Contains(t, se.Body, "nope")

			var perm *backoff.PermanentError
			assert.Equal(t, tt.permanent, errors.As(err, &perm))
		})
	}
}

func TestCall_MissingAPIKeyMakesNoRequest(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.OpenRouterAPIKey = ""
	_, err := New(cfg, nil).Call(context.Background(), domain.OpSocialResearch, map[string]any{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestCall_NonJSONContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse("I am unable to score these leads."))
	}))
	defer ts.Close()

	_, err := New(testConfig(ts.URL), nil).Call(context.Background(), domain.OpLeadScoring, map[string]any{})
	var vErr *ai.JSONValidationError
	require.True(t, errors.As(err, &vErr))
}

func TestCall_EmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	_, err := New(testConfig(ts.URL), nil).Call(context.Background(), domain.OpPredictiveAnalytics, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestCall_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(testConfig(ts.URL), nil).Call(ctx, domain.OpConversationAnalysis, map[string]any{"text": "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_UnknownKind(t *testing.T) {
	_, err := New(testConfig("http://127.0.0.1:0"), nil).Call(context.Background(), domain.OperationKind("poetry"), nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestEstimateTokens_IncludesCompletionAllowance(t *testing.T) {
	c := New(testConfig("http://unused"), nil)
	n := c.EstimateTokens(domain.OpConversationAnalysis, map[string]string{"text": "We have budget approved and want a demo next week."})
	assert.Greater(t, n, 256)
	assert.Zero(t, c.EstimateTokens(domain.OperationKind("poetry"), nil))
	assert.Equal(t, "openrouter", c.Provider())
}
