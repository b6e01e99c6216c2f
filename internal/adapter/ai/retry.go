package ai

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often an outbound call is attempted. Every failure
// is retried except a backoff.Permanent error or cancellation of the caller's
// context.
type RetryPolicy struct {
	MaxRetries          int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64

	// OnAttempt runs after every attempt with its 1-based number and result.
	OnAttempt func(attempt int, err error)
	// OnRetry runs before each wait.
	OnRetry func(err error, wait time.Duration)
}

// DefaultRetryPolicy mirrors the production defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
	}
}

// NewBackOff builds the wait schedule: exponential with jitter, never shorter
// than the previous wait, stopping after MaxRetries retries.
func (p RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expo.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		expo.Multiplier = p.Multiplier
	}
	if p.RandomizationFactor >= 0 && p.RandomizationFactor < 1 {
		expo.RandomizationFactor = p.RandomizationFactor
	}
	expo.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	var b backoff.BackOff = &nonDecreasing{next: expo}
	b = backoff.WithMaxRetries(b, uint64(retries))
	return backoff.WithContext(b, ctx)
}

// Budget is the longest a full run can take when each attempt is cut off
// after attemptTimeout.
func (p RetryPolicy) Budget(attemptTimeout time.Duration) time.Duration {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	wait := p.MaxInterval
	if wait <= 0 {
		wait = backoff.DefaultMaxInterval
	}
	jitter := p.RandomizationFactor
	if jitter < 0 || jitter >= 1 {
		jitter = backoff.DefaultRandomizationFactor
	}
	waits := time.Duration(float64(wait) * (1 + jitter))
	return time.Duration(retries+1)*attemptTimeout + time.Duration(retries)*waits
}

// Do runs op until it succeeds or the policy gives up, and returns the last error.
func Do[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		result  T
		attempt int
	)
	run := func() error {
		attempt++
		v, err := op(ctx)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}
	if err := backoff.RetryNotify(run, p.NewBackOff(ctx), p.OnRetry); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// nonDecreasing clamps jittered waits so each is at least the previous one.
type nonDecreasing struct {
	next backoff.BackOff
	last time.Duration
}

func (n *nonDecreasing) NextBackOff() time.Duration {
	d := n.next.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if d < n.last {
		d = n.last
	}
	n.last = d
	return d
}

func (n *nonDecreasing) Reset() {
	n.next.Reset()
	n.last = 0
}
