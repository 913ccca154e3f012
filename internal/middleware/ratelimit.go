package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/theplug/backend/internal/http/dto"
	"go.uber.org/zap"
)

// RateLimitMiddleware allows limit requests per client IP and route within
// a fixed window. Redis errors fail open.
func RateLimitMiddleware(rdb *redis.Client, prefix string, limit int, window time.Duration, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limit <= 0 {
			return c.Next()
		}
		key := fmt.Sprintf("rl:%s:%s:%s", prefix, c.Path(), c.IP())
		ctx := c.UserContext()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			return c.Next()
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  dto.CodeRateLimited,
			})
		}

		return c.Next()
	}
}
