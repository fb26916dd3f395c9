package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pos-dashboard/internal/config"
	"github.com/iliyamo/pos-dashboard/internal/logger"
)

// tokenBucket adds `per` tokens every `every` ms up to `cap` and spends
// one per request. Buckets are redis hashes so every instance shares them.
// Returns {allowed, tokens left, ms until the next refill}.
var tokenBucket = redis.NewScript(`
local bucket = KEYS[1]
local now, cap, per, every, ttl =
  tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local saved = redis.call('HMGET', bucket, 'n', 'ts')
local have, stamp = tonumber(saved[1]), tonumber(saved[2])
if not have or not stamp then
  have, stamp = cap, now
end

local steps = math.floor(math.max(0, now - stamp) / every)
if steps > 0 then
  have = math.min(cap, have + steps * per)
  stamp = stamp + steps * every
end

local ok, wait = 0, 0
if have >= 1 then
  ok, have = 1, have - 1
else
  wait = every - (now - stamp)
end

redis.call('HSET', bucket, 'n', have, 'ts', stamp)
redis.call('EXPIRE', bucket, ttl)
return {ok, have, wait}
`)

// RateLimitOption tweaks NewTokenBucket.
type RateLimitOption func(*rateLimiter)

// WithRateLimitClock replaces time.Now.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(r *rateLimiter) { r.now = now }
}

// WithRateLimitLogger sets the logger used for redis failures.
func WithRateLimitLogger(l *slog.Logger) RateLimitOption {
	return func(r *rateLimiter) { r.log = l }
}

type rateLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	now func() time.Time
	log *slog.Logger
}

// NewTokenBucket limits requests per key. It is a no-op when disabled or
// when rdb is nil, and fails open when redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, opts ...RateLimitOption) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	rl := &rateLimiter{cfg: cfg, rdb: rdb, now: time.Now, log: slog.Default()}
	for _, o := range opts {
		o(rl)
	}
	return rl.middleware
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func (rl *rateLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := rateKey(rl.cfg, c)
		vals, err := tokenBucket.Run(c.Request().Context(), rl.rdb, []string{key},
			rl.now().UnixMilli(),
			rl.cfg.Capacity,
			rl.cfg.RefillTokens,
			rl.cfg.RefillInterval.Milliseconds(),
			int64(rl.cfg.TTL/time.Second),
		).Int64Slice()
		if err != nil || len(vals) != 3 {
			rl.log.Warn("rate limiter unavailable",
				slog.String("action", "rate_limit"), slog.String("key", key), logger.Err(err))
			return next(c)
		}
		allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Capacity))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if rl.cfg.Debug {
			h.Set("X-RateLimit-Key", key)
		}
		if !allowed {
			secs := int(math.Ceil(float64(retryMs) / 1000))
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"retry_after": secs,
			})
		}
		return next(c)
	}
}

// rateKey builds the bucket key from the dimensions named by the
// strategy, e.g. "ip_route". Unknown strategies use ip, user and route.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	dims := map[string]string{
		"ip":    ip,
		"user":  identity(c),
		"route": c.Request().Method + " " + c.Path(),
	}
	var use []string
	switch strategy := strings.ToLower(cfg.KeyStrategy); strategy {
	case "ip", "user", "route", "ip_user", "ip_route", "user_route":
		use = strings.Split(strategy, "_")
	default:
		use = []string{"ip", "user", "route"}
	}
	parts := []string{cfg.Prefix}
	for _, d := range use {
		parts = append(parts, d, dims[d])
	}
	return strings.Join(parts, ":")
}
