package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qr-attribution-service/internal/api/http/handlers"
	"github.com/spec-kit/qr-attribution-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	ShortLinks     *handlers.ShortLinksHandler
	Redirect       *handlers.RedirectHandler
	Webhook        *handlers.WebhookHandler
	Tickets        *handlers.TicketsHandler
	Agents         *handlers.AgentsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/r/:code", cfg.Redirect.Redirect)

	app.Post("/webhook/whatsapp", cfg.Webhook.WhatsApp)

	api := app.Group("/api/v1")
	api.Post("/shortlinks", cfg.ShortLinks.Create)
	api.Get("/shortlinks/:code", cfg.ShortLinks.Get)

	api.Post("/agents/register", cfg.Agents.Register)
	api.Post("/agents/login", cfg.Agents.Login)

	console := api.Group("", cfg.AuthMiddleware.Handle)
	console.Post("/tickets", cfg.Tickets.Create)
	console.Get("/tickets", cfg.Tickets.List)
	console.Get("/tickets/:id", cfg.Tickets.Get)
	console.Get("/tickets/:id/messages", cfg.Tickets.Messages)
	console.Post("/tickets/:id/claim", cfg.Tickets.Claim)
	console.Post("/tickets/:id/notes", cfg.Tickets.AddNote)
	console.Post("/tickets/:id/transfer", cfg.Tickets.Transfer)
	console.Post("/tickets/:id/close", cfg.Tickets.Close)
}
