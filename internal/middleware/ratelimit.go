package middleware

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware is a fixed-window counter kept in redis, keyed by the
// authenticated caller or, before login, by IP. With no redis client or a
// non-positive limit it is a no-op.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || limit <= 0 {
			return c.Next()
		}
		key := "rl:" + rateKey(c)

		ctx := c.UserContext()
		var incr *redis.IntCmd
		_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.ExpireNX(ctx, key, window)
			return nil
		})
		if err != nil {
			return c.Next() // fail open
		}

		count := incr.Val()
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(max(int64(limit)-count, 0), 10))
		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}

func rateKey(c *fiber.Ctx) string {
	if addr := GetAddress(c); addr != (common.Address{}) {
		return addr.Hex()
	}
	return c.IP()
}
