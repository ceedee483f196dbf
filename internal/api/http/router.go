package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/issue-engine/internal/api/http/handlers"
	"github.com/spec-kit/issue-engine/internal/auth"
	"github.com/spec-kit/issue-engine/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Issues         *handlers.IssuesHandler
	Assignments    *handlers.AssignmentsHandler
	Notifications  *handlers.NotificationsHandler
	Users          *handlers.UsersHandler
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

	authenticated := cfg.AuthMiddleware.Handle
	admin := auth.RequireAdmin()

	issues := app.Group("/issues", authenticated)
	issues.Post("/", cfg.Issues.CreateIssue)
	issues.Get("/", cfg.Issues.ListIssues)
	issues.Get("/me", cfg.Issues.ListReported)
	issues.Get("/engineers/me/issues", cfg.Issues.ListAssigned)
	issues.Get("/:id", cfg.Issues.GetIssue)
	issues.Patch("/:id/status", cfg.Issues.UpdateStatus)
	issues.Post("/:id/assign", admin, cfg.Assignments.Assign)
	issues.Post("/:id/auto-assign", admin, cfg.Assignments.AutoAssign)
	issues.Get("/:id/assignments", admin, cfg.Assignments.IssueHistory)

	assignments := app.Group("/assignments", authenticated, admin)
	assignments.Get("/history", cfg.Assignments.History)
	assignments.Get("/workload", cfg.Assignments.Workload)

	app.Get("/stats", authenticated, admin, cfg.Issues.Stats)

	users := app.Group("/users", authenticated, admin)
	users.Get("/", cfg.Users.ListUsers)
	users.Post("/engineers", cfg.Users.CreateEngineer)
	users.Post("/create-engineer", cfg.Users.CreateEngineer)

	notifications := app.Group("/notifications", authenticated)
	notifications.Get("/", cfg.Notifications.ListNotifications)
	notifications.Get("/stream", cfg.Notifications.Stream)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
}
