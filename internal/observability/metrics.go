// Package observability holds the in-process metrics registry read back by the
// orchestrator and the logger-in-context helpers.
package observability

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLatencySamples bounds the latency ring when no size is given.
const DefaultLatencySamples = 1000

// Snapshot is a point-in-time copy of the registry.
type Snapshot struct {
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	CacheHitRate       float64          `json:"cache_hit_rate"`
	RateLimited        int64            `json:"rate_limited"`
	Timeouts           int64            `json:"timeouts"`
	AverageLatencyMs   float64          `json:"average_latency_ms"`
	LatencyP50Ms       float64          `json:"latency_p50_ms"`
	LatencyP95Ms       float64          `json:"latency_p95_ms"`
	LatencyP99Ms       float64          `json:"latency_p99_ms"`
	Samples            int              `json:"samples"`
	ByOperation        map[string]int64 `json:"by_operation"`
}

// Registry counts requests and outcomes. Counters are atomic; latency samples
// live in a mutex-guarded ring so percentiles reflect recent traffic only.
type Registry struct {
	totalRequests atomic.Int64
	successful    atomic.Int64
	failed        atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	rateLimited   atomic.Int64
	timeouts      atomic.Int64

	mu           sync.Mutex
	ring         []time.Duration
	next         int
	filled       bool
	latencySum   time.Duration
	latencyCount int64
	byOperation  map[string]int64
}

// NewRegistry returns a registry keeping up to samples latencies.
func NewRegistry(samples int) *Registry {
	if samples <= 0 {
		samples = DefaultLatencySamples
	}
	return &Registry{
		ring:        make([]time.Duration, samples),
		byOperation: make(map[string]int64),
	}
}

// RecordAttempt counts one outbound attempt.
func (r *Registry) RecordAttempt() { r.totalRequests.Add(1) }

// RecordCacheHit counts a response served from cache.
func (r *Registry) RecordCacheHit() { r.cacheHits.Add(1) }

// RecordCacheMiss counts a lookup that fell through to the provider.
func (r *Registry) RecordCacheMiss() { r.cacheMisses.Add(1) }

// RecordRateLimited counts a rejected admission.
func (r *Registry) RecordRateLimited() { r.rateLimited.Add(1) }

// RecordSuccess counts a successful operation and its latency.
func (r *Registry) RecordSuccess(operation string, latency time.Duration) {
	r.successful.Add(1)
	r.observe(operation, latency)
}

// RecordFailure counts a failed operation. Timeouts are tracked separately as well.
func (r *Registry) RecordFailure(operation string, latency time.Duration, timeout bool) {
	r.failed.Add(1)
	if timeout {
		r.timeouts.Add(1)
	}
	r.observe(operation, latency)
}

func (r *Registry) observe(operation string, latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = latency
	r.next++
	if r.next == len(r.ring) {
		r.next = 0
		r.filled = true
	}
	r.latencySum += latency
	r.latencyCount++
	if operation != "" {
		r.byOperation[operation]++
	}
}

// Snapshot returns a consistent copy of the counters and latency percentiles.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		TotalRequests:      r.totalRequests.Load(),
		SuccessfulRequests: r.successful.Load(),
		FailedRequests:     r.failed.Load(),
		CacheHits:          r.cacheHits.Load(),
		CacheMisses:        r.cacheMisses.Load(),
		RateLimited:        r.rateLimited.Load(),
		Timeouts:           r.timeouts.Load(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}

	r.mu.Lock()
	n := r.next
	if r.filled {
		n = len(r.ring)
	}
	samples := make([]time.Duration, n)
	copy(samples, r.ring[:n])
	if r.latencyCount > 0 {
		s.AverageLatencyMs = ms(r.latencySum / time.Duration(r.latencyCount))
	}
	s.ByOperation = make(map[string]int64, len(r.byOperation))
	for k, v := range r.byOperation {
		s.ByOperation[k] = v
	}
	r.mu.Unlock()

	s.Samples = len(samples)
	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		s.LatencyP50Ms = ms(percentile(samples, 0.50))
		s.LatencyP95Ms = ms(percentile(samples, 0.95))
		s.LatencyP99Ms = ms(percentile(samples, 0.99))
	}
	return s
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
