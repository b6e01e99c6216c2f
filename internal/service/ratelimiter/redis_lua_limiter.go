package ratelimiter

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindowLimiter shares one fixed window across processes. The window
// check and update run atomically in a Lua script.
type RedisWindowLimiter struct {
	redis  *redis.Client
	key    string
	limits Limits
	script *redis.Script
	now    func() time.Time

	admitted atomic.Int64
	rejected atomic.Int64
}

// NewRedisWindowLimiter returns nil when rdb is nil; a nil limiter admits everything.
func NewRedisWindowLimiter(rdb *redis.Client, key string, limits Limits, opts ...Option) *RedisWindowLimiter {
	if rdb == nil {
		return nil
	}
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	if key == "" {
		key = "ai"
	}
	return &RedisWindowLimiter{
		redis:  rdb,
		key:    "ratelimit:" + key,
		limits: limits,
		script: redis.NewScript(luaWindowScript),
		now:    applyOptions(opts).now,
	}
}

// Times are integer milliseconds. The hash expires after two windows of inactivity.
const luaWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local req_limit = tonumber(ARGV[3])
local tok_limit = tonumber(ARGV[4])
local req_cost = tonumber(ARGV[5])
local tok_cost = tonumber(ARGV[6])

local start = now
local requests = 0
local tokens = 0

local data = redis.call("HMGET", key, "start", "requests", "tokens")
if data[1] ~= false and data[1] ~= nil then
  start = tonumber(data[1])
  requests = tonumber(data[2]) or 0
  tokens = tonumber(data[3]) or 0
end

if now - start >= window then
  start = now
  requests = 0
  tokens = 0
end

local allowed = 1
if req_limit > 0 and requests + req_cost > req_limit then
  allowed = 0
end
if tok_limit > 0 and tokens + tok_cost > tok_limit then
  allowed = 0
end

if allowed == 1 then
  requests = requests + req_cost
  tokens = tokens + tok_cost
end

redis.call("HMSET", key, "start", start, "requests", requests, "tokens", tokens)
redis.call("PEXPIRE", key, window * 2)

return { allowed, requests, tokens, start }
`

// Admit runs the window script. Redis errors fail open: the call is admitted
// and the error returned for logging.
func (l *RedisWindowLimiter) Admit(ctx context.Context, cost Cost) (Decision, error) {
	if l == nil || l.redis == nil {
		return Decision{Allowed: true}, nil
	}
	cost = normalizeCost(cost, l.limits)
	nowMs := l.now().UnixMilli()
	windowMs := l.limits.Window.Milliseconds()

	res, err := l.script.Run(ctx, l.redis, []string{l.key},
		nowMs, windowMs, l.limits.RequestsPerWindow, l.limits.TokensPerWindow, cost.Requests, cost.Tokens).Result()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", l.key), slog.Any("error", err))
		l.admitted.Add(1)
		return Decision{Allowed: true}, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 4 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", l.key), slog.Any("result", res))
		l.admitted.Add(1)
		return Decision{Allowed: true}, nil
	}
	if toInt64(vals[0]) == 1 {
		l.admitted.Add(1)
		return Decision{Allowed: true}, nil
	}
	l.rejected.Add(1)
	elapsed := nowMs - toInt64(vals[3])
	retry := time.Duration(windowMs-elapsed) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return Decision{RetryAfter: retry}, nil
}

// Status reads the shared window. Read failures are reported in Status.Error.
func (l *RedisWindowLimiter) Status(ctx context.Context) Status {
	if l == nil || l.redis == nil {
		return Status{Backend: "redis"}
	}
	now := l.now()
	st := Status{
		Backend:      "redis",
		WindowStart:  now,
		WindowSize:   l.limits.Window,
		ResetIn:      l.limits.Window,
		RequestLimit: l.limits.RequestsPerWindow,
		TokenLimit:   l.limits.TokensPerWindow,
		Admitted:     l.admitted.Load(),
		Rejected:     l.rejected.Load(),
	}
	vals, err := l.redis.HMGet(ctx, l.key, "start", "requests", "tokens").Result()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	if len(vals) == 3 && vals[0] != nil {
		start := time.UnixMilli(parseInt(vals[0]))
		if elapsed := now.Sub(start); elapsed < l.limits.Window {
			st.WindowStart = start
			st.ResetIn = l.limits.Window - elapsed
			st.Requests = parseInt(vals[1])
			st.Tokens = parseInt(vals[2])
		}
	}
	fill(&st)
	return st
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func parseInt(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return toInt64(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
