package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// RateLimitResult is the outcome of one counter increment.
type RateLimitResult struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// RateLimiter counts requests per client in Redis. Limits are not enforced
// in the test, development and stress environments.
type RateLimiter struct {
	rdb    *redis.Client
	bypass bool
}

// NewRateLimiter creates a RateLimiter for the configured APP_ENV.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	return &RateLimiter{rdb: rdb, bypass: rateLimitBypassed(env)}
}

func rateLimitBypassed(env string) bool {
	switch env {
	case "test", "development", "stress":
		return true
	}
	return false
}

// Check increments a fixed-window counter for resource/id.
func (l *RateLimiter) Check(ctx context.Context, resource, id string, limit int, window time.Duration) (RateLimitResult, error) {
	if l.bypass {
		return RateLimitResult{Allowed: true}, nil
	}
	rdb := l.rdb
	if rdb == nil {
		return RateLimitResult{}, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return RateLimitResult{}, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return RateLimitResult{}, err
		}
	}

	result := RateLimitResult{Allowed: cnt <= int64(limit), Count: cnt}
	if !result.Allowed {
		ttl, err := rdb.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = window
		}
		result.RetryAfter = ttl
	}
	return result, nil
}

// Limit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by authenticated userID (if set in c.Locals("userID")) otherwise by remote IP.
// It defaults to FailOpen policy.
func (l *RateLimiter) Limit(limit int, window time.Duration, name ...string) fiber.Handler {
	return l.LimitWithPolicy(limit, window, FailOpen, name...)
}

// LimitWithPolicy returns a Fiber middleware enforcing `limit` requests per `window` with a specific failure policy.
func (l *RateLimiter) LimitWithPolicy(limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		result, err := l.Check(c.UserContext(), resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !result.Allowed {
			retryAfter := strconv.Itoa(int(result.RetryAfter.Round(time.Second).Seconds()))
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"code":        "RATE_LIMITED",
				"retry_after": retryAfter,
			})
		}
		return c.Next()
	}
}
