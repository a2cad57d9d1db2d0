package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)

	// Plan catalog
	adminGroup.Get("/plans", h.deps.Plans.HandleAdminList)
	adminGroup.Post("/plans", h.deps.Plans.HandleCreate)
	adminGroup.Put("/plans/:id", h.deps.Plans.HandleUpdate)
	adminGroup.Delete("/plans/:id", h.deps.Plans.HandleDelete)
	adminGroup.Post("/plans/:id/offers", h.deps.Plans.HandleAddOffer)
	adminGroup.Delete("/plans/:id/offers/:code", h.deps.Plans.HandleRemoveOffer)

	// Subscriptions
	adminGroup.Get("/subscriptions", h.deps.Subscriptions.HandleAdminList)
	adminGroup.Post("/subscriptions/:userId/override", h.deps.Subscriptions.HandleAdminOverride)
	adminGroup.Get("/analytics", h.deps.Subscriptions.HandleAnalytics)

	// Billing
	adminGroup.Get("/billing/orders/:orderId/webhooks", h.deps.Billing.HandleAdminWebhookEvents)

	// Vendors and users
	adminGroup.Put("/vendors/:feature", h.deps.Generation.HandleSetVendor)
	adminGroup.Post("/users/:id/api-key", h.deps.Accounts.HandleIssueAPIKey)
}
