package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// noExpiry is what PTTL reports for a key that exists without a TTL.
const noExpiry = time.Duration(-1)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig limits uploads per client IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 30,
		Window:      time.Minute,
		KeyPrefix:   "ratelimit:upload",
	}
}

// RateLimit counts requests per IP in a fixed redis window. Redis failures
// let the request through.
func RateLimit(rdb redis.UniversalClient, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if config.MaxRequests <= 0 || config.Window <= 0 {
		defaults := DefaultRateLimitConfig()
		config.MaxRequests = defaults.MaxRequests
		config.Window = defaults.Window
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRateLimitConfig().KeyPrefix
	}

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		key := config.KeyPrefix + ":" + c.IP()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			return c.Next()
		}

		// The first request of a window starts the clock. A counter left
		// without a TTL (a failed EXPIRE) gets one on the next hit.
		reset := config.Window
		if count == 1 {
			armWindow(ctx, rdb, key, config.Window, logger)
		} else if ttl, err := rdb.PTTL(ctx, key).Result(); err == nil {
			switch {
			case ttl > 0:
				reset = ttl
			case ttl == noExpiry:
				armWindow(ctx, rdb, key, config.Window, logger)
			}
		}

		remaining := config.MaxRequests - int(count)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if count > int64(config.MaxRequests) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(reset.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		return c.Next()
	}
}

func armWindow(ctx context.Context, rdb redis.UniversalClient, key string, window time.Duration, logger *zap.Logger) {
	if err := rdb.Expire(ctx, key, window).Err(); err != nil {
		logger.Warn("rate limit expire failed", zap.String("key", key), zap.Error(err))
	}
}
