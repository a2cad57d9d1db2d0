package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/app/controllers"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usagegate"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the handlers and middlewares the routers mount.
type Dependencies struct {
	Users repository.UserRepository
	Gate  *usagegate.Gate

	// Limiter throttles /api. Nil disables rate limiting.
	Limiter fiber.Handler

	Plans         *controllers.PlanController
	Subscriptions *controllers.SubscriptionController
	Billing       *controllers.BillingController
	Generation    *controllers.GenerationController
	Accounts      *controllers.UserController
}

func InstallRouter(app *fiber.App, deps *Dependencies) {
	// HttpRouter installs the user context and API key resolution that the
	// API and admin routes depend on, so it goes first.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
