package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstream        = errors.New("upstream provider error")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrInternal        = errors.New("internal error")
)

// RateLimitedError is returned when admission is rejected. It unwraps to ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// Unwrap allows errors.Is(err, ErrRateLimited).
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// ProviderError is returned after the retry policy gave up on the outbound call.
type ProviderError struct {
	Kind     OperationKind
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed after %d attempts: %v", e.Kind, e.Attempts, e.Err)
}

// Is matches ErrUpstream; the last attempt's cause stays reachable through Unwrap.
func (e *ProviderError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *ProviderError) Unwrap() error { return e.Err }

// OperationKind enumerates the AI operations the orchestrator mediates.
type OperationKind string

const (
	OpLeadScoring          OperationKind = "lead_scoring"
	OpConversationAnalysis OperationKind = "conversation_analysis"
	OpVoiceCommand         OperationKind = "voice_command"
	OpSocialResearch       OperationKind = "social_research"
	OpPredictiveAnalytics  OperationKind = "predictive_analytics"
)

// AllOperationKinds lists every kind in declaration order.
func AllOperationKinds() []OperationKind {
	return []OperationKind{OpLeadScoring, OpConversationAnalysis, OpVoiceCommand, OpSocialResearch, OpPredictiveAnalytics}
}

// Valid reports whether k is a known operation kind.
func (k OperationKind) Valid() bool {
	for _, v := range AllOperationKinds() {
		if v == k {
			return true
		}
	}
	return false
}

// AIResponse is a provider result as stored in the response cache.
// Invariants: Confidence in [0,1]; Payload is valid JSON.
type AIResponse struct {
	Kind       OperationKind
	Payload    json.RawMessage
	Confidence float64
	ProducedAt time.Time
}

// OutboundCaller (port) performs exactly one provider call per invocation.
//
//go:generate mockery --name=OutboundCaller --with-expecter --filename=outbound_caller_mock.go
type OutboundCaller interface {
	Call(ctx Context, kind OperationKind, payload any) (json.RawMessage, error)
}

// Context is an alias to allow decoupling from std context in domain.
type Context = context.Context
