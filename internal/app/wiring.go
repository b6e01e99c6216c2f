package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/lead-intel/internal/adapter/ai"
	"github.com/fairyhunter13/lead-intel/internal/adapter/ai/real"
	"github.com/fairyhunter13/lead-intel/internal/adapter/ai/stub"
	"github.com/fairyhunter13/lead-intel/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/lead-intel/internal/config"
	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/internal/observability"
	"github.com/fairyhunter13/lead-intel/internal/service/ratelimiter"
	"github.com/fairyhunter13/lead-intel/internal/textintel"
	"github.com/fairyhunter13/lead-intel/internal/usecase"
)

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) RedisPingResult { return p.c.Ping(ctx) }

// NewRedisClient connects to url. An empty url returns nil without error.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=app.NewRedisClient: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("op=app.NewRedisClient: ping: %w", err)
	}
	return rdb, nil
}

// RedisReadiness returns the readiness probe for rdb, nil when rdb is nil.
func RedisReadiness(rdb *redis.Client) func(context.Context) error {
	if rdb == nil {
		return nil
	}
	return BuildReadinessCheck(redisPinger{c: rdb})
}

// NewEngine builds the text intelligence engine, merging the optional lexicon file.
func NewEngine(cfg config.Config) (*textintel.Engine, error) {
	lex, err := textintel.LoadLexicon(cfg.LexiconFile)
	if err != nil {
		return nil, err
	}
	return textintel.New(lex), nil
}

// NewCaller selects the outbound caller for cfg.AIProvider.
func NewCaller(cfg config.Config, engine *textintel.Engine) domain.OutboundCaller {
	if cfg.UseStubProvider() {
		return stub.New(engine)
	}
	return real.New(cfg, tokencount.NewCounter())
}

// NewLimiter returns a Redis-backed window shared across replicas when rdb is
// set, and an in-process window otherwise.
func NewLimiter(cfg config.Config, rdb *redis.Client) ratelimiter.Limiter {
	limits := ratelimiter.Limits{
		RequestsPerWindow: int64(cfg.RateLimitRequestsPerMin),
		TokensPerWindow:   int64(cfg.RateLimitTokensPerMin),
		Window:            cfg.RateLimitWindow,
	}
	if rdb != nil {
		return ratelimiter.NewRedisWindowLimiter(rdb, cfg.RateLimitKey, limits)
	}
	return ratelimiter.NewWindowLimiter(limits)
}

// BuildOrchestrator assembles every component from configuration.
func BuildOrchestrator(cfg config.Config, rdb *redis.Client) (*usecase.Orchestrator, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("op=app.BuildOrchestrator: %w", err)
	}
	caller := NewCaller(cfg, engine)
	limiter := NewLimiter(cfg, rdb)

	slog.Info("ai orchestrator configured",
		slog.String("provider", cfg.AIProvider),
		slog.Bool("shared_rate_limit", rdb != nil),
		slog.Bool("cache_enabled", cfg.CacheEnabled),
		slog.Bool("queue_on_rate_limit", cfg.RateLimitQueue),
		slog.Bool("dedup_in_flight", cfg.DedupInFlight))

	return usecase.NewOrchestrator(usecase.Deps{
		Caller:  caller,
		Engine:  engine,
		Limiter: limiter,
		Cache:   ai.NewResponseCache(cfg.CacheCapacity, cfg.CacheTTL),
		Metrics: observability.NewRegistry(cfg.LatencySamples),
		Health: ai.NewHealthTracker(ai.HealthThresholds{
			UnhealthyAfter:      cfg.HealthUnhealthyAfter,
			Window:              cfg.HealthWindow,
			DegradedFailureRate: cfg.HealthDegradedFailureRate,
		}),
		Retry: usecase.RetryPolicyFromConfig(cfg),
	}, usecase.OptionsFromConfig(cfg))
}
