package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("AI_PROVIDER", "stub")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.True(t, cfg.UseStubProvider())
	assert.Equal(t, 3, cfg.AIMaxRetries)
	assert.Equal(t, 30*time.Second, cfg.AITimeout)
	assert.Equal(t, 60, cfg.RateLimitRequestsPerMin)
	assert.Equal(t, 90000, cfg.RateLimitTokensPerMin)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.DedupInFlight)
	assert.Equal(t, 5, cfg.HealthUnhealthyAfter)
}

func Test_Load_Overrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "openrouter")
	t.Setenv("AI_MAX_RETRIES", "0")
	t.Setenv("AI_TIMEOUT", "2s")
	t.Setenv("RATE_LIMIT_QUEUE", "true")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.UseStubProvider())
	assert.Equal(t, 0, cfg.AIMaxRetries)
	assert.Equal(t, 2*time.Second, cfg.AITimeout)
	assert.True(t, cfg.RateLimitQueue)
	assert.False(t, cfg.CacheEnabled)
}

func Test_Load_ParseError(t *testing.T) {
	t.Setenv("AI_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=config.Load")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{AIProvider: "stub", AITimeout: time.Second, RateLimitWindow: time.Minute, HealthDegradedFailureRate: 0.25}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative retries", func(c *Config) { c.AIMaxRetries = -1 }, "AI_MAX_RETRIES"},
		{"zero timeout", func(c *Config) { c.AITimeout = 0 }, "AI_TIMEOUT"},
		{"zero window", func(c *Config) { c.RateLimitWindow = 0 }, "RATE_LIMIT_WINDOW"},
		{"unknown provider", func(c *Config) { c.AIProvider = "carrier-pigeon" }, "AI_PROVIDER"},
		{"failure rate out of range", func(c *Config) { c.HealthDegradedFailureRate = 1.5 }, "HEALTH_DEGRADED_FAILURE_RATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_GetAIBackoffConfig(t *testing.T) {
	cfg := Config{
		AppEnv:                   "prod",
		AIBackoffInitialInterval: time.Second,
		AIBackoffMaxInterval:     8 * time.Second,
		AIBackoffMultiplier:      1.5,
		AIBackoffJitter:          0.3,
	}
	initial, maxInterval, mult, jitter := cfg.GetAIBackoffConfig()
	assert.Equal(t, time.Second, initial)
	assert.Equal(t, 8*time.Second, maxInterval)
	assert.Equal(t, 1.5, mult)
	assert.Equal(t, 0.3, jitter)

	cfg.AppEnv = "test"
	initial, maxInterval, _, jitter = cfg.GetAIBackoffConfig()
	assert.Equal(t, 10*time.Millisecond, initial)
	assert.Equal(t, 100*time.Millisecond, maxInterval)
	assert.Zero(t, jitter)
}
