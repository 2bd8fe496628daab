package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	advisorAvailable bool
	cache            Pinger
}

// NewHealthHandler reports liveness and readiness. cache may be nil.
func NewHealthHandler(advisorAvailable bool, cache Pinger) *HealthHandler {
	return &HealthHandler{
		advisorAvailable: advisorAvailable,
		cache:            cache,
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready is true whenever assets are loaded, which is the case for any running
// server. Advisor and cache problems degrade the service but do not fail it.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	cacheStatus := "disabled"
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		cacheStatus = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "unreachable"
		}
	}

	return c.JSON(fiber.Map{
		"status":  "ready",
		"assets":  "loaded",
		"advisor": h.advisorAvailable,
		"cache":   cacheStatus,
	})
}
