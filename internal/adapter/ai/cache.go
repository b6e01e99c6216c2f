// Package ai provides the resilience wrappers placed around outbound AI
// provider calls: a response cache, a retry policy and a health tracker.
package ai

import (
	"container/list"
	"sync"
	"time"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

// CacheStats is a point-in-time view of a ResponseCache.
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	TTL         string  `json:"ttl"`
}

type cacheEntry struct {
	fingerprint string
	response    domain.AIResponse
	insertedAt  time.Time
	expiresAt   time.Time
	elem        *list.Element
}

// ResponseCache maps request fingerprints to provider responses.
// It is safe for concurrent use. When full, the entry inserted earliest is
// evicted regardless of how recently it was read.
type ResponseCache struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // front = oldest insertion

	hits, misses, evictions, expirations int64
}

// CacheOption customizes a ResponseCache.
type CacheOption func(*ResponseCache)

// WithCacheClock replaces time.Now, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ResponseCache) { c.now = now }
}

// NewResponseCache creates a cache holding at most capacity entries.
// capacity <= 0 defaults to 1024.
func NewResponseCache(capacity int, defaultTTL time.Duration, opts ...CacheOption) *ResponseCache {
	if capacity <= 0 {
		capacity = 1024
	}
	c := &ResponseCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
		entries:    make(map[string]*cacheEntry, capacity),
		order:      list.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached response. An expired entry is removed and reported as a miss.
func (c *ResponseCache) Get(fingerprint string) (domain.AIResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return domain.AIResponse{}, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.remove(e)
		c.expirations++
		c.misses++
		return domain.AIResponse{}, false
	}
	c.hits++
	return e.response, true
}

// Put stores resp under fingerprint. ttl <= 0 uses the cache default; if that
// is also <= 0 the entry never expires. Re-putting a fingerprint refreshes
// its value and expiry but keeps its insertion slot.
func (c *ResponseCache) Put(fingerprint string, resp domain.AIResponse, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	if e, ok := c.entries[fingerprint]; ok {
		e.response = resp
		e.expiresAt = expires
		return
	}
	for len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*cacheEntry))
		c.evictions++
	}
	e := &cacheEntry{fingerprint: fingerprint, response: resp, insertedAt: now, expiresAt: expires}
	e.elem = c.order.PushBack(e)
	c.entries[fingerprint] = e
}

func (c *ResponseCache) remove(e *cacheEntry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.fingerprint)
}

// Len returns the number of stored entries, expired ones included until read.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. Counters are kept.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry, c.capacity)
	c.order.Init()
}

// Stats returns counters and occupancy.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Size:        len(c.entries),
		Capacity:    c.capacity,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		TTL:         c.defaultTTL.String(),
	}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}
	return st
}
