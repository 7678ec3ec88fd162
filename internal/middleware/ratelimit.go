package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/briefly/internal/apperror"
)

// rateLimitPrefix namespaces limiter counters in Redis.
const rateLimitPrefix = "ratelimit:"

// RateLimit returns middleware that allows maxRequests per client IP in each
// fixed window. Counters live in Redis so limits hold across instances.
// name separates the counters of different endpoints. When Redis is
// unreachable the request is let through and a warning is logged.
func RateLimit(rdb *redis.Client, name string, maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateLimitPrefix + name + ":" + c.RealIP()

			count, ttl, err := hit(c.Request().Context(), rdb, key, window)
			if err != nil {
				slog.Warn("rate limiter unavailable",
					slog.String("limiter", name),
					slog.Any("error", err),
				)
				return next(c)
			}

			if count > int64(maxRequests) {
				retry := int(ttl.Round(time.Second) / time.Second)
				if retry < 1 {
					retry = 1
				}
				c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(retry))
				return apperror.NewTooManyRequests("rate limit exceeded, please try again later")
			}
			return next(c)
		}
	}
}

// hit increments the window counter for key and returns the new count and
// the time left in the window. The first hit of a window sets its expiry.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("incrementing %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("expiring %s: %w", key, err)
		}
		remaining = window
	}
	return incr.Val(), remaining, nil
}
