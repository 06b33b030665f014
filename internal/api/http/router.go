package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/fleetops/maintenance-service/internal/api/http/handlers"
	"github.com/fleetops/maintenance-service/internal/auth"
	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Maintenance    *handlers.MaintenanceHandler
	Notifications  *handlers.NotificationHandler
	Escalation     *handlers.EscalationHandler
	Reference      *handlers.ReferenceHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	api.Post("/users", auth.RequireRole(domain.RoleAdmin), cfg.Auth.CreateUser)

	api.Get("/installations", cfg.Reference.ListInstallations)
	api.Post("/installations", auth.RequireRole(domain.RoleAdmin), cfg.Reference.CreateInstallation)
	api.Post("/installations/:id/critical-conditions", auth.RequireRole(domain.RoleOversight), cfg.Escalation.EvaluateInstallation)
	api.Get("/responsibles", cfg.Reference.ListResponsibles)

	heads := auth.RequireRole(domain.RoleBahiaHead, domain.RoleOversight, domain.RoleFlotaHead)
	crew := auth.RequireRole(domain.RoleMaintenance, domain.RoleBahiaHead, domain.RoleOversight, domain.RoleFlotaHead)

	maintenance := api.Group("/maintenance")
	maintenance.Get("/stats", cfg.Maintenance.Stats)
	maintenance.Get("/pending", cfg.Maintenance.Pending)
	maintenance.Get("", cfg.Maintenance.List)
	maintenance.Post("", cfg.Maintenance.Create)
	maintenance.Get("/:id", cfg.Maintenance.Get)
	maintenance.Patch("/:id", crew, cfg.Maintenance.UpdateDetails)
	maintenance.Patch("/:id/status", crew, cfg.Maintenance.UpdateStatus)
	maintenance.Patch("/:id/responsible", heads, cfg.Maintenance.UpdateResponsible)
	maintenance.Patch("/:id/fault-type", crew, cfg.Maintenance.UpdateFaultType)
	maintenance.Post("/:id/estimates", crew, cfg.Maintenance.AddEstimate)
	maintenance.Get("/:id/comments", cfg.Maintenance.Comments)
	maintenance.Post("/:id/comments", cfg.Maintenance.AddComment)
	maintenance.Get("/:id/history", cfg.Maintenance.History)

	api.Get("/notifications", cfg.Notifications.List)

	escalation := api.Group("/escalation", auth.RequireRole(domain.RoleOversight))
	escalation.Post("/run", cfg.Escalation.Run)
	escalation.Get("/last-run", cfg.Escalation.LastRun)
}
