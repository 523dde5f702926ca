package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pennysavia/pennysavia-api/internal/utils"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	appName string
	version string
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(appName, version string) *HealthHandler {
	return &HealthHandler{appName: appName, version: version}
}

// Register wires the health route onto the router group.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
}

// Health returns a static liveness payload.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "ok", fiber.Map{
		"app":     h.appName,
		"version": h.version,
		"status":  "healthy",
	})
}
