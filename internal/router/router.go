package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pennysavia/pennysavia-api/internal/handler"
	"github.com/pennysavia/pennysavia-api/internal/middleware"
	"github.com/pennysavia/pennysavia-api/internal/observability"
)

// Dependencies carries the handlers the router mounts.
type Dependencies struct {
	Health      *handler.HealthHandler
	Submissions *handler.SubmissionHandler
	Users       *handler.UserHandler
	Chat        *handler.ChatHandler
	Uploads     *handler.UploadHandler
	JWTSecret   string
}

// Register mounts all API routes onto the Fiber application.
func Register(app *fiber.App, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1")

	deps.Health.Register(api)
	deps.Submissions.Register(api)
	deps.Chat.Register(api)
	deps.Uploads.Register(api)

	admin := api.Group("/admin", middleware.AdminProtected(deps.JWTSecret))
	deps.Users.Register(admin)
	deps.Chat.RegisterAdmin(admin)
}
