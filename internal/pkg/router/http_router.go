package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/middleware"
)

type HttpRouter struct {
	deps *Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply UserContext middleware globally, then resolve API keys into it
	app.Use(middleware.UserContextMiddleware)
	app.Use(middleware.APIKeyAuthMiddleware(h.deps.Users))

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter(deps *Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
