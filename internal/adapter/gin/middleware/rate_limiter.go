package middleware

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"university-user-service/internal/adapter/gin/response"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/logger"
)

// RateLimiterConfig holds token bucket settings.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstCapacity     int
}

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// tokenBucketScript refills the bucket for the time elapsed since the last
// request and takes one token. Time comes from the caller in milliseconds.
// Returns 1 when allowed, 0 when the bucket is empty.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill) / 1000
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'last_refill', now, 'tokens', tokens)
redis.call('PEXPIRE', key, math.ceil(capacity / rate * 1000) + 1000)
return allowed
`)

// RedisClient is the subset of the go-redis client the limiter uses.
type RedisClient interface {
	redis.Scripter
	Time(ctx context.Context) *redis.TimeCmd
}

// RedisLimiter is a token bucket shared by every instance through Redis.
type RedisLimiter struct {
	client RedisClient
	prefix string
	config RateLimiterConfig
}

// NewRedisLimiter creates a Redis-backed limiter. Keys are
// prefix + "ratelimit:tb:" + key.
func NewRedisLimiter(client RedisClient, prefix string, config RateLimiterConfig) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, config: config}
}

// Allow implements Limiter. The Redis server clock is the time source so
// every instance refills buckets consistently.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now, err := l.client.Time(ctx).Result()
	if err != nil {
		return false, fmt.Errorf("redis time: %w", err)
	}

	allowed, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + "ratelimit:tb:" + key},
		l.config.RequestsPerSecond,
		l.config.BurstCapacity,
		now.UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}

// LocalLimiter keeps one token bucket per key in process memory. It is used
// when Redis is disabled.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   RateLimiterConfig
	maxKeys  int
}

// NewLocalLimiter creates an in-process limiter.
func NewLocalLimiter(config RateLimiterConfig) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
		maxKeys:  10000,
	}
}

// Allow implements Limiter.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= l.maxKeys {
			// Full buckets are the default state, so dropping them all only
			// forgives clients currently being throttled.
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstCapacity)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow(), nil
}

// RateLimiter returns a Gin middleware that limits requests per method,
// route and client IP. Limiter errors let the request through.
func RateLimiter(limiter Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", c.Request.Method, path, c.ClientIP())

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context(), log).Warn("rate limiter error, allowing request", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			response.Fail(c, pkgerrors.KindRateLimited, "too many requests, please try again later")
			return
		}

		c.Next()
	}
}
