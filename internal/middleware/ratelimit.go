package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
)

// RateLimit is a fixed-window per-IP limiter backed by redis. A nil
// client disables limiting, which keeps tests and redis-less local runs
// working.
func RateLimit(redisClient *redis.Client, maxRequests int, window time.Duration) fiber.Handler {
	if maxRequests <= 0 || window <= 0 {
		panic("RateLimit requires positive maxRequests and window")
	}

	return func(c *fiber.Ctx) error {
		if redisClient == nil {
			return c.Next()
		}

		key := "ratelimit:" + c.IP() + ":" + c.Path()
		ctx := c.UserContext()

		pipe := redisClient.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Limiting is best effort; a redis outage must not take the
			// API down with it.
			logger.Error("ratelimit_redis_failed", err, map[string]interface{}{
				"ip":   c.IP(),
				"path": c.Path(),
			})
			return c.Next()
		}

		if incr.Val() > int64(maxRequests) {
			logger.Warn("ratelimit_exceeded", map[string]interface{}{
				"ip":   c.IP(),
				"path": c.Path(),
			})
			return utils.Error(c, fiber.StatusTooManyRequests, "Too many requests")
		}

		return c.Next()
	}
}
