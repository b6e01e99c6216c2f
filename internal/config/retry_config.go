package config

import (
	"time"
)

// RetryConfig holds the outbound retry settings.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Timeout bounds each individual attempt.
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor applied to each wait.
	Jitter float64
}

// GetRetryConfig returns the retry configuration
func (c Config) GetRetryConfig() RetryConfig {
	initial, maxInterval, multiplier, jitter := c.GetAIBackoffConfig()
	return RetryConfig{
		MaxRetries:      c.AIMaxRetries,
		Timeout:         c.AITimeout,
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		Multiplier:      multiplier,
		Jitter:          jitter,
	}
}
