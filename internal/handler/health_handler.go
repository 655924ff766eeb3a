package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool  Pinger
	cache Pinger
}

// NewHealthHandler creates a new HealthHandler. cache may be nil when Redis
// is not configured.
func NewHealthHandler(pool Pinger, cache Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, cache: cache}
}

// Check pings the database and, when configured, Redis.
// Returns 200 OK with {"status": "healthy"} when all dependencies respond.
// Returns 503 Service Unavailable with {"status": "unhealthy", "error": "..."} otherwise.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.pool.Ping(c.UserContext()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}
	if h.cache != nil {
		if err := h.cache.Ping(c.UserContext()); err != nil {
			log.Error().Err(err).Msg("health check failed: redis unreachable")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "redis connection failed",
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
