package app

import (
	"context"
	"fmt"
)

// RedisPingResult is the minimal return type of a Redis client's Ping.
type RedisPingResult interface{ Err() error }

// RedisClient is the minimal interface for a Redis client needed for readiness.
type RedisClient interface {
	Ping(ctx context.Context) RedisPingResult
}

// BuildReadinessCheck returns the Redis probe, or nil when the limiter runs in
// process and there is nothing external to probe.
func BuildReadinessCheck(rdb RedisClient) func(ctx context.Context) error {
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}
