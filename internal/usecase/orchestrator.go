// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/lead-intel/internal/adapter/ai"
	promobs "github.com/fairyhunter13/lead-intel/internal/adapter/observability"
	"github.com/fairyhunter13/lead-intel/internal/config"
	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/internal/observability"
	"github.com/fairyhunter13/lead-intel/internal/service/ratelimiter"
	"github.com/fairyhunter13/lead-intel/internal/textintel"
)

const tracerName = "github.com/fairyhunter13/lead-intel/internal/usecase"

// TokenEstimator is implemented by callers that can price a request in tokens
// before sending it. Callers without it are admitted at zero tokens.
type TokenEstimator interface {
	EstimateTokens(kind domain.OperationKind, payload any) int
}

// Provider is implemented by callers that can name their upstream.
type Provider interface {
	Provider() string
}

// Deps are the components an Orchestrator composes. Only Caller is required.
type Deps struct {
	Caller  domain.OutboundCaller
	Engine  *textintel.Engine
	Limiter ratelimiter.Limiter
	Cache   *ai.ResponseCache
	Metrics *observability.Registry
	Health  *ai.HealthTracker
	Retry   ai.RetryPolicy
}

// Options tune the pipeline.
type Options struct {
	// Timeout bounds each outbound attempt.
	Timeout          time.Duration
	CacheEnabled     bool
	CacheTTL         time.Duration
	QueueOnRateLimit bool
	DedupInFlight    bool
	// Monitoring mirrors outcomes to Prometheus and logs every call at info.
	Monitoring bool
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Timeout:          cfg.GetRetryConfig().Timeout,
		CacheEnabled:     cfg.CacheEnabled,
		CacheTTL:         cfg.CacheTTL,
		QueueOnRateLimit: cfg.RateLimitQueue,
		DedupInFlight:    cfg.DedupInFlight,
		Monitoring:       cfg.MonitoringEnabled,
	}
}

// RetryPolicyFromConfig builds the outbound retry policy.
func RetryPolicyFromConfig(cfg config.Config) ai.RetryPolicy {
	rc := cfg.GetRetryConfig()
	return ai.RetryPolicy{
		MaxRetries:          rc.MaxRetries,
		InitialInterval:     rc.InitialInterval,
		MaxInterval:         rc.MaxInterval,
		Multiplier:          rc.Multiplier,
		RandomizationFactor: rc.Jitter,
	}
}

// Orchestrator mediates every AI operation: validation, caching, admission,
// retries, per-attempt timeouts, result merging, metrics and health.
type Orchestrator struct {
	caller   domain.OutboundCaller
	engine   *textintel.Engine
	limiter  ratelimiter.Limiter
	cache    *ai.ResponseCache
	metrics  *observability.Registry
	health   *ai.HealthTracker
	retry    ai.RetryPolicy
	opts     Options
	validate *validator.Validate
	tracer   trace.Tracer
	group    singleflight.Group
	provider string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires deps into an Orchestrator. Missing optional
// components get in-process defaults.
func NewOrchestrator(d Deps, opts Options) (*Orchestrator, error) {
	if d.Caller == nil {
		return nil, fmt.Errorf("op=usecase.NewOrchestrator: %w: outbound caller is required", domain.ErrInvalidArgument)
	}
	if d.Engine == nil {
		d.Engine = textintel.NewDefault()
	}
	if d.Limiter == nil {
		d.Limiter = ratelimiter.NewWindowLimiter(ratelimiter.Limits{Window: time.Minute})
	}
	if d.Cache == nil {
		d.Cache = ai.NewResponseCache(0, opts.CacheTTL)
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewRegistry(0)
	}
	if d.Health == nil {
		d.Health = ai.NewHealthTracker(ai.HealthThresholds{})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	provider := "unknown"
	if p, ok := d.Caller.(Provider); ok {
		provider = p.Provider()
	}
	return &Orchestrator{
		caller:   d.Caller,
		engine:   d.Engine,
		limiter:  d.Limiter,
		cache:    d.Cache,
		metrics:  d.Metrics,
		health:   d.Health,
		retry:    d.Retry,
		opts:     opts,
		validate: validator.New(),
		tracer:   otel.Tracer(tracerName),
		provider: provider,
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// finisher normalizes a decoded provider answer and reports its confidence.
type finisher[T any] func(T) (T, float64, error)

// execute runs the shared pipeline for one operation and decodes the result into T.
func execute[T any](ctx context.Context, o *Orchestrator, kind domain.OperationKind, payload any, finish finisher[T]) (T, error) {
	var zero T
	if err := o.validate.StructCtx(ctx, payload); err != nil {
		return zero, invalid(kind, err)
	}
	req, err := domain.NewAIRequest(kind, payload)
	if err != nil {
		return zero, fmt.Errorf("op=orchestrator.%s: %w", kind, err)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator."+string(kind), trace.WithAttributes(
		attribute.String("ai.operation", string(kind)),
		attribute.String("ai.request_id", req.ID()),
		attribute.String("ai.provider", o.provider),
	))
	defer span.End()

	ctx = observability.WithOperation(ctx, observability.Operation{Name: string(kind), AIRequestID: req.ID()})
	lg := observability.LoggerFromContext(ctx)

	if o.opts.CacheEnabled {
		if resp, ok := o.cache.Get(req.Fingerprint()); ok {
			o.metrics.RecordCacheHit()
			if o.opts.Monitoring {
				promobs.ObserveCacheLookup(string(kind), true)
			}
			span.SetAttributes(attribute.Bool("ai.cache_hit", true))
			var out T
			if err := json.Unmarshal(resp.Payload, &out); err != nil {
				return zero, fmt.Errorf("op=orchestrator.%s: %w: cached payload: %v", kind, domain.ErrInternal, err)
			}
			lg.Debug("ai response served from cache")
			return out, nil
		}
		o.metrics.RecordCacheMiss()
		if o.opts.Monitoring {
			promobs.ObserveCacheLookup(string(kind), false)
		}
		span.SetAttributes(attribute.Bool("ai.cache_hit", false))
	}

	normalize := func(raw json.RawMessage) (json.RawMessage, float64, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, 0, fmt.Errorf("decode %s answer: %w", kind, err)
		}
		v, conf, err := finish(v)
		if err != nil {
			return nil, 0, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, 0, fmt.Errorf("encode %s answer: %w", kind, err)
		}
		return b, conf, nil
	}

	var raw json.RawMessage
	if o.opts.DedupInFlight {
		var shared bool
		raw, shared, err = o.fetchShared(ctx, req, normalize)
		span.SetAttributes(attribute.Bool("ai.shared", shared))
		if err != nil {
			recordSpanError(span, err)
			return zero, err
		}
	} else {
		raw, err = o.fetch(ctx, req, normalize)
		if err != nil {
			recordSpanError(span, err)
			return zero, err
		}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("op=orchestrator.%s: %w: %v", kind, domain.ErrInternal, err)
	}
	return out, nil
}

// fetchShared collapses concurrent fetches of one fingerprint. The shared
// fetch is detached from the cancellation of whichever caller started it and
// is bounded by the retry budget instead; every caller stops waiting when its
// own ctx is done.
func (o *Orchestrator) fetchShared(ctx context.Context, req domain.AIRequest, normalize func(json.RawMessage) (json.RawMessage, float64, error)) (json.RawMessage, bool, error) {
	ch := o.group.DoChan(req.Fingerprint(), func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.sharedBudget(ctx))
		defer cancel()
		return o.fetch(sctx, req, normalize)
	})
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("op=orchestrator.%s: %w", req.Kind(), ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Shared, r.Err
		}
		return r.Val.(json.RawMessage), r.Shared, nil
	}
}

func (o *Orchestrator) sharedBudget(ctx context.Context) time.Duration {
	budget := o.retry.Budget(o.opts.Timeout)
	if o.opts.QueueOnRateLimit {
		budget += o.limiter.Status(ctx).WindowSize
	}
	return budget
}

func invalid(kind domain.OperationKind, err error) error {
	return fmt.Errorf("op=orchestrator.%s: %w: %v", kind, domain.ErrInvalidArgument, err)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

type callResult struct {
	raw json.RawMessage
	err error
}

// fetch admits, calls the provider with retries and stores the normalized answer.
func (o *Orchestrator) fetch(ctx context.Context, req domain.AIRequest, normalize func(json.RawMessage) (json.RawMessage, float64, error)) (json.RawMessage, error) {
	kind := req.Kind()
	lg := observability.LoggerFromContext(ctx)

	if err := o.admit(ctx, req); err != nil {
		return nil, err
	}

	type answer struct {
		raw  json.RawMessage
		conf float64
	}
	attempts := 0
	policy := o.retry
	policy.OnAttempt = func(n int, err error) {
		attempts = n
		o.metrics.RecordAttempt()
		if err != nil {
			lg.Warn("ai attempt failed", slog.Int("attempt", n), slog.Any("error", err))
		}
	}
	policy.OnRetry = func(err error, wait time.Duration) {
		if o.opts.Monitoring {
			promobs.ObserveRetry(string(kind))
		}
		lg.Debug("retrying ai call", slog.Duration("wait", wait))
	}

	start := o.now()
	ans, err := ai.Do(ctx, policy, func(ctx context.Context) (answer, error) {
		actx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()

		ch := make(chan callResult, 1)
		go func() {
			raw, err := o.caller.Call(actx, kind, req.Payload())
			ch <- callResult{raw: raw, err: err}
		}()
		var res callResult
		select {
		case <-actx.Done():
			if ctx.Err() != nil {
				return answer{}, ctx.Err()
			}
			return answer{}, fmt.Errorf("%w: attempt exceeded %s: %w", domain.ErrUpstreamTimeout, o.opts.Timeout, actx.Err())
		case res = <-ch:
		}
		if res.err != nil {
			return answer{}, res.err
		}
		b, conf, err := normalize(res.raw)
		if err != nil {
			return answer{}, err
		}
		return answer{raw: b, conf: conf}, nil
	})
	latency := o.now().Sub(start)

	if err != nil {
		return nil, o.fail(ctx, kind, attempts, latency, err)
	}

	if o.opts.CacheEnabled {
		o.cache.Put(req.Fingerprint(), domain.AIResponse{
			Kind:       kind,
			Payload:    ans.raw,
			Confidence: clamp01(ans.conf),
			ProducedAt: o.now(),
		}, o.opts.CacheTTL)
	}
	o.metrics.RecordSuccess(string(kind), latency)
	o.health.RecordSuccess()
	if o.opts.Monitoring {
		promobs.ObserveOperation(string(kind), "success", latency)
		lg.Info("ai operation completed",
			slog.Int("attempts", attempts),
			slog.Duration("latency", latency))
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("ai.attempts", attempts))
	return ans.raw, nil
}

// admit asks the limiter for room. With queueing on, one rejection is waited
// out and the request re-checked exactly once.
func (o *Orchestrator) admit(ctx context.Context, req domain.AIRequest) error {
	cost := ratelimiter.Cost{Requests: 1}
	if est, ok := o.caller.(TokenEstimator); ok {
		cost.Tokens = int64(est.EstimateTokens(req.Kind(), req.Payload()))
	}
	dec, err := o.limiter.Admit(ctx, cost)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("rate limiter unavailable, admitting", slog.Any("error", err))
	}
	if !dec.Allowed && o.opts.QueueOnRateLimit {
		observability.LoggerFromContext(ctx).Debug("rate limited, waiting", slog.Duration("retry_after", dec.RetryAfter))
		if err := o.sleep(ctx, dec.RetryAfter); err != nil {
			return fmt.Errorf("op=orchestrator.%s: %w", req.Kind(), err)
		}
		dec, err = o.limiter.Admit(ctx, cost)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("rate limiter unavailable, admitting", slog.Any("error", err))
		}
	}
	if o.opts.Monitoring {
		promobs.ObserveRateLimit(dec.Allowed)
	}
	if !dec.Allowed {
		o.metrics.RecordRateLimited()
		return fmt.Errorf("op=orchestrator.%s: %w", req.Kind(), &domain.RateLimitedError{RetryAfter: dec.RetryAfter})
	}
	return nil
}

// fail records a final failure and maps it onto the error taxonomy.
func (o *Orchestrator) fail(ctx context.Context, kind domain.OperationKind, attempts int, latency time.Duration, err error) error {
	lg := observability.LoggerFromContext(ctx)
	timeout := errors.Is(err, domain.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded)
	o.metrics.RecordFailure(string(kind), latency, timeout)

	outcome := "failure"
	var out error
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
		out = fmt.Errorf("op=orchestrator.%s: %w", kind, err)
	case timeout:
		outcome = "timeout"
		o.health.RecordFailure()
		if errors.Is(err, domain.ErrUpstreamTimeout) {
			out = fmt.Errorf("op=orchestrator.%s: %w", kind, err)
		} else {
			out = fmt.Errorf("op=orchestrator.%s: %w: %w", kind, domain.ErrUpstreamTimeout, err)
		}
	default:
		o.health.RecordFailure()
		out = fmt.Errorf("op=orchestrator.%s: %w", kind, &domain.ProviderError{Kind: kind, Attempts: attempts, Err: err})
	}
	if o.opts.Monitoring {
		promobs.ObserveOperation(string(kind), outcome, latency)
	}
	lg.Error("ai operation failed",
		slog.String("outcome", outcome),
		slog.Int("attempts", attempts),
		slog.Duration("latency", latency),
		slog.Any("error", err))
	return out
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	switch {
	case v != v:
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
