package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/danilaloko/eco-bot/internal/api/http/handlers"
	"github.com/danilaloko/eco-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Dashboard       *handlers.DashboardHandler
	AdminMiddleware *auth.AdminMiddleware
}

// RegisterRoutes wires HTTP routes. Everything under /api is read-only and
// requires an administrator token issued by the admin bot.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AdminMiddleware.Handle)
	api.Get("/stats", cfg.Dashboard.Overview)
	api.Get("/stats/potential", cfg.Dashboard.PotentialSummary)
	api.Get("/tasks", cfg.Dashboard.ListTasks)
	api.Get("/tasks/:id/history", cfg.Dashboard.TaskHistory)
	api.Get("/users/:id/history", cfg.Dashboard.UserHistory)
	api.Get("/submissions", cfg.Dashboard.ListSubmissions)
	api.Get("/metrics", cfg.Dashboard.Metrics)
}
