package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/middleware"
)

type ApiRouter struct {
	deps *Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	handlers := []fiber.Handler{}
	if h.deps.Limiter != nil {
		handlers = append(handlers, h.deps.Limiter)
	}
	api := app.Group("/api", handlers...)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Public catalog
	v1.Get("/plans", h.deps.Plans.HandleListActive)
	v1.Post("/promo/validate", h.deps.Plans.HandleValidatePromo)

	// Caller routes, authenticated by API key
	auth := middleware.RequireAuth
	v1.Get("/account", auth, h.deps.Accounts.HandleGetAccount)

	v1.Get("/subscription", auth, h.deps.Subscriptions.HandleGet)
	v1.Get("/subscription/usage", auth, h.deps.Subscriptions.HandleUsage)
	v1.Post("/subscription/free", auth, h.deps.Subscriptions.HandleRegisterFree)
	v1.Post("/subscription/cancel", auth, h.deps.Subscriptions.HandleCancel)

	v1.Post("/billing/orders", auth, h.deps.Billing.HandleCreateOrder)
	v1.Post("/billing/verify", auth, h.deps.Billing.HandleVerifyPayment)

	v1.Post("/generate/:feature", auth, h.deps.Gate.RequireParam("feature"), h.deps.Generation.HandleGenerate)
}

func NewApiRouter(deps *Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
