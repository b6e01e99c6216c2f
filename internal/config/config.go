// Package config defines configuration parsing and helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Supported outbound providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderStub       = "stub"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// AIProvider selects the outbound caller: openrouter or stub (offline, engine-backed).
	AIProvider        string `env:"AI_PROVIDER" envDefault:"openrouter"`
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL" envDefault:"openai/gpt-4o-mini"`
	OpenRouterReferer string `env:"OPENROUTER_REFERER"`
	OpenRouterTitle   string `env:"OPENROUTER_TITLE" envDefault:"Lead Intelligence"`
	AIMaxTokens       int    `env:"AI_MAX_TOKENS" envDefault:"1024"`

	AIMaxRetries int           `env:"AI_MAX_RETRIES" envDefault:"3"`
	AITimeout    time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	// AI Backoff Configuration
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"500ms"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"10s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"2.0"`
	AIBackoffJitter          float64       `env:"AI_BACKOFF_JITTER" envDefault:"0.2"`

	RateLimitRequestsPerMin int           `env:"RATE_LIMIT_REQUESTS_PER_MIN" envDefault:"60"`
	RateLimitTokensPerMin   int           `env:"RATE_LIMIT_TOKENS_PER_MIN" envDefault:"90000"`
	RateLimitWindow         time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	// RateLimitQueue waits out a rejection once instead of failing immediately.
	RateLimitQueue bool `env:"RATE_LIMIT_QUEUE" envDefault:"false"`
	// RedisURL switches the limiter to a window shared by every replica.
	RedisURL     string `env:"REDIS_URL"`
	RateLimitKey string `env:"RATE_LIMIT_KEY" envDefault:"ai-provider"`

	CacheEnabled  bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"15m"`
	CacheCapacity int           `env:"CACHE_CAPACITY" envDefault:"1024"`
	DedupInFlight bool          `env:"DEDUP_IN_FLIGHT" envDefault:"false"`

	MonitoringEnabled bool   `env:"MONITORING_ENABLED" envDefault:"true"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LatencySamples    int    `env:"METRICS_LATENCY_SAMPLES" envDefault:"1000"`

	HealthUnhealthyAfter      int     `env:"HEALTH_UNHEALTHY_AFTER" envDefault:"5"`
	HealthWindow              int     `env:"HEALTH_WINDOW" envDefault:"20"`
	HealthDegradedFailureRate float64 `env:"HEALTH_DEGRADED_FAILURE_RATE" envDefault:"0.25"`

	// LexiconFile is an optional YAML file merged over the built-in lexicon.
	LexiconFile string `env:"LEXICON_FILE"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"lead-intel"`
	// OTELSamplingRatio overrides the environment default when in (0,1].
	OTELSamplingRatio float64 `env:"OTEL_SAMPLING_RATIO"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	HTTPRateLimitPerMin   int           `env:"HTTP_RATE_LIMIT_PER_MIN" envDefault:"120"`
	MaxBodyKB             int64         `env:"MAX_BODY_KB" envDefault:"512"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the orchestrator cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.AIMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("AI_MAX_RETRIES must be >= 0, got %d", c.AIMaxRetries))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, fmt.Errorf("AI_TIMEOUT must be positive, got %s", c.AITimeout))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow))
	}
	switch strings.ToLower(c.AIProvider) {
	case ProviderOpenRouter, ProviderStub:
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER %q is not one of openrouter, stub", c.AIProvider))
	}
	if c.HealthDegradedFailureRate < 0 || c.HealthDegradedFailureRate > 1 {
		errs = append(errs, fmt.Errorf("HEALTH_DEGRADED_FAILURE_RATE must be within [0,1], got %v", c.HealthDegradedFailureRate))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// UseStubProvider reports whether outbound calls are served offline.
func (c Config) UseStubProvider() bool { return strings.ToLower(c.AIProvider) == ProviderStub }

// GetAIBackoffConfig returns backoff configuration appropriate for the current environment.
// In test environments, uses much shorter intervals for faster test execution.
func (c Config) GetAIBackoffConfig() (initialInterval, maxInterval time.Duration, multiplier, jitter float64) {
	if c.IsTest() {
		return 10 * time.Millisecond, 100 * time.Millisecond, 2.0, 0
	}
	return c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier, c.AIBackoffJitter
}
