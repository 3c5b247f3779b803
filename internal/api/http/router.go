package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chat-widget/internal/api/http/handlers"
	"github.com/spec-kit/chat-widget/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Widget         *handlers.WidgetHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	widget := app.Group("/widget")
	widget.Post("/sessions", cfg.Widget.Bootstrap)

	protected := widget.Group("", cfg.AuthMiddleware.Handle)
	protected.Delete("/sessions", cfg.Widget.EndSession)

	protected.Get("/threads", cfg.Widget.ListThreads)
	protected.Post("/threads", cfg.Widget.CreateThread)
	protected.Post("/threads/:id/open", cfg.Widget.OpenThread)
	protected.Post("/threads/:id/close", cfg.Widget.CloseThreadView)
	protected.Delete("/threads/:id", cfg.Widget.DeleteThread)

	protected.Post("/messages", cfg.Widget.SendMessage)
	protected.Post("/messages/retry", cfg.Widget.RetrySend)
	protected.Post("/attachments", cfg.Widget.SendAttachment)
	protected.Post("/quick-replies", cfg.Widget.SubmitQuickReply)
	protected.Post("/forms", cfg.Widget.SubmitForm)
	protected.Post("/uploads", cfg.Widget.Upload)

	protected.Get("/events", cfg.Widget.Events)
}
