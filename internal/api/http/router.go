package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration. Scheduler and
// SchedulerContext are optional.
type RouteConfig struct {
	Health           *handlers.HealthHandler
	Tickets          *handlers.TicketsHandler
	Rules            *handlers.AssignmentRulesHandler
	Notifications    *handlers.NotificationsHandler
	SLA              *handlers.SLAHandler
	Directory        *handlers.DirectoryHandler
	AuthMiddleware   *auth.AuthMiddleware
	Scheduler        SchedulerStarter
	SchedulerContext context.Context
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	ticketGuards := []fiber.Handler{}
	if cfg.Scheduler != nil {
		ctx := cfg.SchedulerContext
		if ctx == nil {
			ctx = context.Background()
		}
		ticketGuards = append(ticketGuards, schedulerGuard(ctx, cfg.Scheduler))
	}
	tickets := api.Group("/tickets", ticketGuards...)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/assign", auth.RequireSupervisor(), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Get("/:id/alerts", cfg.Tickets.ListAlerts)
	tickets.Delete("/:id", auth.RequireAdmin(), cfg.Tickets.DeleteTicket)

	rules := api.Group("/assignment-rules", auth.RequireSupervisor())
	rules.Get("/", cfg.Rules.ListRules)
	rules.Post("/", cfg.Rules.CreateRule)
	rules.Post("/resolve", cfg.Rules.Resolve)
	rules.Get("/:id", cfg.Rules.GetRule)
	rules.Put("/:id", cfg.Rules.UpdateRule)
	rules.Delete("/:id", cfg.Rules.DeleteRule)

	api.Get("/notifications", cfg.Notifications.List)
	api.Post("/notifications/:id/read", cfg.Notifications.MarkRead)

	api.Post("/sla/scan", auth.RequireAdmin(), cfg.SLA.Scan)

	api.Get("/departments", cfg.Directory.ListDepartments)
	api.Post("/departments", auth.RequireAdmin(), cfg.Directory.CreateDepartment)
	api.Put("/departments/:id", auth.RequireAdmin(), cfg.Directory.UpdateDepartment)

	api.Get("/users", auth.RequireSupervisor(), cfg.Directory.ListUsers)
	api.Post("/users", auth.RequireAdmin(), cfg.Directory.CreateUser)
	api.Get("/users/me", cfg.Directory.Me)
	api.Get("/users/:id", cfg.Directory.GetUser)
	api.Put("/users/:id", auth.RequireAdmin(), cfg.Directory.UpdateUser)
}
