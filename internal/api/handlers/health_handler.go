package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/inference"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// Pinger is a backing service the API depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name   string
	pinger Pinger
}

type HealthHandler struct {
	model   *inference.Context
	deps    []dependency
	timeout time.Duration
}

func NewHealthHandler(model *inference.Context) *HealthHandler {
	return &HealthHandler{model: model, timeout: 2 * time.Second}
}

// Require adds a dependency that must answer Ping for the API to be ready.
func (h *HealthHandler) Require(name string, p Pinger) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, pinger: p})
	return h
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	checks := make(fiber.Map, len(h.deps))
	ready := true
	for _, d := range h.deps {
		if err := d.pinger.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("dependency", d.name), zap.Error(err))
			checks[d.name] = err.Error()
			ready = false
			continue
		}
		checks[d.name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"checks": checks,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"model":  h.model.Version(),
		"checks": checks,
	})
}
