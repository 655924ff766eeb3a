package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Allower decides whether one more event for key may proceed.
type Allower interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit throttles authenticated callers per account. It must run after
// Authenticate. When the limiter itself fails the request is let through.
func RateLimit(limiter Allower) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := AccountID(c)
		if !ok {
			return c.Next()
		}

		allowed, err := limiter.Allow(c.UserContext(), accountID.String())
		if err != nil {
			log.Warn().
				Err(err).
				Str("request_id", requestID(c)).
				Str("account_id", accountID.String()).
				Msg("rate limiter unavailable, allowing request")
			return c.Next()
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		}
		return c.Next()
	}
}
