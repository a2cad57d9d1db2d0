package router

import (
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Gateway webhooks authenticate by body signature, not API key
	app.Post("/webhooks/payments", h.deps.Billing.HandleWebhook)
}
