package usecase

import (
	"context"

	"github.com/fairyhunter13/lead-intel/internal/adapter/ai"
	"github.com/fairyhunter13/lead-intel/internal/observability"
	"github.com/fairyhunter13/lead-intel/internal/service/ratelimiter"
)

// HealthDetails backs a HealthReport.
type HealthDetails struct {
	Provider  string                 `json:"provider"`
	Outcomes  ai.HealthSnapshot      `json:"outcomes"`
	Metrics   observability.Snapshot `json:"metrics"`
	RateLimit ratelimiter.Status     `json:"rate_limit"`
	Cache     ai.CacheStats          `json:"cache"`
}

// HealthReport is the answer of HealthCheck.
type HealthReport struct {
	Status  ai.HealthStatus `json:"status"`
	Details HealthDetails   `json:"details"`
}

// GetMetrics returns a snapshot of the in-process counters.
func (o *Orchestrator) GetMetrics() observability.Snapshot {
	return o.metrics.Snapshot()
}

// GetRateLimitStatus returns the live limiter window.
func (o *Orchestrator) GetRateLimitStatus(ctx context.Context) ratelimiter.Status {
	return o.limiter.Status(ctx)
}

// GetCacheStats returns response cache counters.
func (o *Orchestrator) GetCacheStats() ai.CacheStats {
	return o.cache.Stats()
}

// HealthCheck classifies provider health from recent outcomes and limiter saturation.
func (o *Orchestrator) HealthCheck(ctx context.Context) HealthReport {
	rl := o.limiter.Status(ctx)
	status, snap := o.health.Status(rl.Saturated)
	return HealthReport{
		Status: status,
		Details: HealthDetails{
			Provider:  o.provider,
			Outcomes:  snap,
			Metrics:   o.metrics.Snapshot(),
			RateLimit: rl,
			Cache:     o.cache.Stats(),
		},
	}
}
