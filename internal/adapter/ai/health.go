package ai

import (
	"log/slog"
	"sync"
	"time"
)

// HealthStatus is the coarse provider health reported by health checks.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthThresholds decide how outcomes map to a HealthStatus.
type HealthThresholds struct {
	// UnhealthyAfter consecutive failed calls mark the provider unhealthy.
	UnhealthyAfter int
	// Window is how many recent outcomes the failure rate is computed over.
	Window int
	// DegradedFailureRate at or above which the provider is degraded.
	DegradedFailureRate float64
}

// DefaultHealthThresholds returns 5 consecutive failures, a 20 call window and a 25% failure rate.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{UnhealthyAfter: 5, Window: 20, DegradedFailureRate: 0.25}
}

// HealthSnapshot is what the tracker has observed so far.
type HealthSnapshot struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	RecentFailureRate   float64   `json:"recent_failure_rate"`
	RecentSamples       int       `json:"recent_samples"`
	TotalCalls          int64     `json:"total_calls"`
	TotalFailures       int64     `json:"total_failures"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
}

// HealthTracker records the final outcome of each orchestrated call.
type HealthTracker struct {
	mu         sync.RWMutex
	thresholds HealthThresholds
	now        func() time.Time

	ring    []bool // true = failed
	next    int
	filled  int
	failing int

	consecutive   int
	totalCalls    int64
	totalFailures int64
	lastFailure   time.Time
	lastSuccess   time.Time
}

// NewHealthTracker creates a tracker; zero thresholds fall back to the defaults.
func NewHealthTracker(th HealthThresholds) *HealthTracker {
	def := DefaultHealthThresholds()
	if th.UnhealthyAfter <= 0 {
		th.UnhealthyAfter = def.UnhealthyAfter
	}
	if th.Window <= 0 {
		th.Window = def.Window
	}
	if th.DegradedFailureRate <= 0 {
		th.DegradedFailureRate = def.DegradedFailureRate
	}
	return &HealthTracker{thresholds: th, now: time.Now, ring: make([]bool, th.Window)}
}

// RecordSuccess records a successful call.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.consecutive >= h.thresholds.UnhealthyAfter {
		slog.Info("ai provider recovered",
			slog.Int("previous_consecutive_failures", h.consecutive))
	}
	h.consecutive = 0
	h.totalCalls++
	h.lastSuccess = h.now()
	h.push(false)
}

// RecordFailure records a call that failed after all retries.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consecutive++
	h.totalCalls++
	h.totalFailures++
	h.lastFailure = h.now()
	h.push(true)

	if h.consecutive == h.thresholds.UnhealthyAfter {
		slog.Warn("ai provider marked unhealthy after consecutive failures",
			slog.Int("consecutive_failures", h.consecutive),
			slog.Float64("recent_failure_rate", h.failureRate()))
	}
}

func (h *HealthTracker) push(failed bool) {
	if h.filled == len(h.ring) && h.ring[h.next] {
		h.failing--
	}
	h.ring[h.next] = failed
	if failed {
		h.failing++
	}
	h.next = (h.next + 1) % len(h.ring)
	if h.filled < len(h.ring) {
		h.filled++
	}
}

func (h *HealthTracker) failureRate() float64 {
	if h.filled == 0 {
		return 0
	}
	return float64(h.failing) / float64(h.filled)
}

// Snapshot returns the observed counters.
func (h *HealthTracker) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		ConsecutiveFailures: h.consecutive,
		RecentFailureRate:   h.failureRate(),
		RecentSamples:       h.filled,
		TotalCalls:          h.totalCalls,
		TotalFailures:       h.totalFailures,
		LastFailure:         h.lastFailure,
		LastSuccess:         h.lastSuccess,
	}
}

// Status classifies health. limiterSaturated is folded in as a degradation
// cause.
func (h *HealthTracker) Status(limiterSaturated bool) (HealthStatus, HealthSnapshot) {
	snap := h.Snapshot()
	switch {
	case snap.ConsecutiveFailures >= h.thresholds.UnhealthyAfter:
		return HealthUnhealthy, snap
	case snap.RecentSamples > 0 && snap.RecentFailureRate >= h.thresholds.DegradedFailureRate:
		return HealthDegraded, snap
	case limiterSaturated:
		return HealthDegraded, snap
	default:
		return HealthHealthy, snap
	}
}
