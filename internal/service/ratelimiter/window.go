// Package ratelimiter gates outbound AI calls on request and token budgets
// measured over fixed time windows.
package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Cost is what one admission consumes.
type Cost struct {
	Requests int64
	Tokens   int64
}

// Decision is the outcome of Admit. RetryAfter is set only when rejected.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limits configures a window. A zero ceiling disables that dimension.
type Limits struct {
	RequestsPerWindow int64
	TokensPerWindow   int64
	Window            time.Duration
}

// Status is a snapshot of the live window.
type Status struct {
	Backend       string        `json:"backend"`
	WindowStart   time.Time     `json:"window_start"`
	WindowSize    time.Duration `json:"window_size"`
	ResetIn       time.Duration `json:"reset_in"`
	Requests      int64         `json:"requests"`
	RequestLimit  int64         `json:"request_limit"`
	Tokens        int64         `json:"tokens"`
	TokenLimit    int64         `json:"token_limit"`
	Admitted      int64         `json:"admitted_total"`
	Rejected      int64         `json:"rejected_total"`
	Saturated     bool          `json:"saturated"`
	RequestsUsage float64       `json:"requests_usage"`
	TokensUsage   float64       `json:"tokens_usage"`
	Error         string        `json:"error,omitempty"`
}

// Limiter is implemented by the in-process and Redis-backed limiters.
type Limiter interface {
	Admit(ctx context.Context, cost Cost) (Decision, error)
	Status(ctx context.Context) Status
}

// WindowLimiter is an in-process fixed-window limiter. One window is live at
// a time; it resets when now - start >= size, before the admission check.
type WindowLimiter struct {
	limits Limits
	now    func() time.Time

	mu       sync.Mutex
	start    time.Time
	requests int64
	tokens   int64
	admitted int64
	rejected int64
}

type settings struct {
	now func() time.Time
}

// Option customizes a limiter.
type Option func(*settings)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func applyOptions(opts []Option) settings {
	s := settings{now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// NewWindowLimiter builds a limiter; a non-positive window defaults to one minute.
func NewWindowLimiter(limits Limits, opts ...Option) *WindowLimiter {
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	l := &WindowLimiter{limits: limits, now: applyOptions(opts).now}
	l.start = l.now()
	return l
}

// Admit records cost if it fits in the current window.
func (l *WindowLimiter) Admit(_ context.Context, cost Cost) (Decision, error) {
	cost = l.normalize(cost)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.start) >= l.limits.Window {
		l.start, l.requests, l.tokens = now, 0, 0
	}
	if fits(l.requests, cost.Requests, l.limits.RequestsPerWindow) && fits(l.tokens, cost.Tokens, l.limits.TokensPerWindow) {
		l.requests += cost.Requests
		l.tokens += cost.Tokens
		l.admitted++
		return Decision{Allowed: true}, nil
	}
	l.rejected++
	return Decision{RetryAfter: l.limits.Window - now.Sub(l.start)}, nil
}

// Status reports the live window without mutating it. An expired window is
// reported as empty.
func (l *WindowLimiter) Status(_ context.Context) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st := Status{
		Backend:      "memory",
		WindowStart:  l.start,
		WindowSize:   l.limits.Window,
		RequestLimit: l.limits.RequestsPerWindow,
		TokenLimit:   l.limits.TokensPerWindow,
		Admitted:     l.admitted,
		Rejected:     l.rejected,
	}
	elapsed := now.Sub(l.start)
	if elapsed >= l.limits.Window {
		st.WindowStart = now
		st.ResetIn = l.limits.Window
	} else {
		st.Requests, st.Tokens = l.requests, l.tokens
		st.ResetIn = l.limits.Window - elapsed
	}
	fill(&st)
	return st
}

// normalize defaults the request cost to one and caps tokens at the ceiling
// so a single oversized call can still pass through an empty window.
func (l *WindowLimiter) normalize(c Cost) Cost {
	return normalizeCost(c, l.limits)
}

func normalizeCost(c Cost, limits Limits) Cost {
	if c.Requests <= 0 {
		c.Requests = 1
	}
	if c.Tokens < 0 {
		c.Tokens = 0
	}
	if limits.TokensPerWindow > 0 && c.Tokens > limits.TokensPerWindow {
		c.Tokens = limits.TokensPerWindow
	}
	return c
}

func fits(used, add, limit int64) bool {
	return limit <= 0 || used+add <= limit
}

func fill(st *Status) {
	if st.RequestLimit > 0 {
		st.RequestsUsage = float64(st.Requests) / float64(st.RequestLimit)
	}
	if st.TokenLimit > 0 {
		st.TokensUsage = float64(st.Tokens) / float64(st.TokenLimit)
	}
	st.Saturated = (st.RequestLimit > 0 && st.Requests >= st.RequestLimit) ||
		(st.TokenLimit > 0 && st.Tokens >= st.TokenLimit)
}
