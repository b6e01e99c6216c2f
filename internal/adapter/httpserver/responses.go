// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the lead intelligence operations and the AI observability reads
// as a JSON API. Handlers decode and validate requests, delegate to the
// orchestrator and map its error taxonomy onto status codes.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and the error envelope. Upstream
// classes are checked before ErrInvalidArgument because a provider error may
// wrap a permanent client-side cause.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	msg := err.Error()

	var rl *domain.RateLimitedError
	switch {
	case errors.As(err, &rl):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
		w.Header().Set("Retry-After", retryAfterSeconds(rl))
		if details == nil {
			details = map[string]any{"retry_after_ms": rl.RetryAfter.Milliseconds()}
		}
	case errors.Is(err, domain.ErrRateLimited):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		code = http.StatusGatewayTimeout
		codeStr = "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstream):
		code = http.StatusBadGateway
		codeStr = "UPSTREAM_ERROR"
		var pe *domain.ProviderError
		if errors.As(err, &pe) && details == nil {
			details = map[string]any{"operation": pe.Kind, "attempts": pe.Attempts}
		}
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	default:
		msg = "internal error"
	}
	if code >= http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", slog.Int("status", code), slog.Any("error", err))
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}

// retryAfterSeconds rounds up so clients never retry before the window resets.
func retryAfterSeconds(rl *domain.RateLimitedError) string {
	secs := int(math.Ceil(rl.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
