// Package server assembles the fiber application and its services.
package server

import (
	"fmt"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/SoundSmith/app/controllers"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/billing"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/cache"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/catalog"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/gateway"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/generation"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/metrics"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/router"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/subscription"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usagegate"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/vault"
)

const openAPIFile = "public/docs/v1/openapi.yml"

// Services are the long-lived collaborators built from configuration.
type Services struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Repos    *repository.Repositories
	Catalog  *catalog.Service
	Store    *subscription.Store
	Billing  *billing.Service
	Gate     *usagegate.Gate
	Recorder *usagegate.Recorder

	Generation *generation.Service
}

// Options override collaborators that talk to the outside world.
type Options struct {
	// Gateway replaces the HTTP payment gateway client.
	Gateway gateway.Client
	// Cache backs the plan catalog. Nil disables catalog caching.
	Cache catalog.Cache
}

// NewServices wires the domain services on the factory's repositories.
func NewServices(cfg *config.Config, factory *repository.Factory, opts Options) (*Services, error) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	repos := factory.GetRepositories()

	catalogOpts := []catalog.Option{catalog.WithMetrics(m)}
	if opts.Cache != nil {
		catalogOpts = append(catalogOpts, catalog.WithCache(opts.Cache))
	}
	plans := catalog.NewService(repos.Plan, catalogOpts...)
	store := subscription.NewStore(repos.Subscription, plans, subscription.WithMetrics(m))

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.NewHTTPClient(cfg.Gateway)
	}

	v, err := vault.New(cfg.VaultKey)
	if err != nil {
		return nil, err
	}
	if !v.Enabled() {
		log.Warn("[Server] VAULT_KEY is not set, vendor credentials cannot be stored or used")
	}

	return &Services{
		Registry:   registry,
		Metrics:    m,
		Repos:      repos,
		Catalog:    plans,
		Store:      store,
		Billing:    billing.NewServiceFromDB(factory.DB(), plans, store, gw, billing.WithMetrics(m), billing.WithPublicKeyID(cfg.Gateway.KeyID)),
		Gate:       usagegate.New(store, m),
		Recorder:   usagegate.NewRecorder(store, m),
		Generation: generation.NewService(repos.VendorCredential, v, cfg.VendorTimeout),
	}, nil
}

// Dependencies builds the controllers the routers mount.
func (s *Services) Dependencies(limiter fiber.Handler) *router.Dependencies {
	return &router.Dependencies{
		Users:         s.Repos.User,
		Gate:          s.Gate,
		Limiter:       limiter,
		Plans:         controllers.NewPlanController(s.Catalog),
		Subscriptions: controllers.NewSubscriptionController(s.Store, s.Catalog),
		Billing:       controllers.NewBillingController(s.Billing),
		Generation:    controllers.NewGenerationController(s.Generation, s.Recorder),
		Accounts:      controllers.NewUserController(s.Repos.User, s.Store),
	}
}

// NewApplication creates the fiber app with the ambient middlewares and all routes.
func NewApplication(cfg *config.Config, s *Services, limiter fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: 8 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"success": false, "error": "HTTP_ERROR", "message": fe.Message})
			}
			log.Errorf("[Server] unhandled error on %s %s: %v", c.Method(), c.Path(), err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "INTERNAL", "message": "Internal server error"})
		},
	})

	// recovery, request ids and logging
	app.Use(recover.New(), requestid.New(), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(s.Metrics.Middleware())

	// prometheus and fiber metrics behind basic auth
	monitorAuth := basicauth.New(basicauth.Config{
		Authorizer: monitorAuthorizer(cfg.Admin),
	})
	app.Get("/metrics", monitorAuth, adaptor.HTTPHandler(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
	app.Get("/monitor", monitorAuth, monitor.New(monitor.Config{Title: cfg.App.Name + " Monitor"}))

	// SWAGGER / OPENAPI
	if _, err := os.Stat(openAPIFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: openAPIFile,
			Path:     "v1",
		}))
	} else {
		log.Warnf("[Server] %s not found, API docs disabled", openAPIFile)
	}

	router.InstallRouter(app, s.Dependencies(limiter))
	return app
}

// monitorAuthorizer checks the monitor password against a bcrypt hash. An
// empty hash locks the monitor endpoints.
func monitorAuthorizer(cfg config.Admin) func(user, pass string) bool {
	hash := []byte(cfg.MonitorPasswordHash)
	return func(user, pass string) bool {
		if len(hash) == 0 || user != cfg.MonitorUser {
			return false
		}
		return bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
	}
}

// Address is the listen address for cfg.
func Address(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
}

// CatalogCache adapts the cache client for the plan catalog, or returns nil
// when there is no client.
func CatalogCache(c *cache.Client) catalog.Cache {
	if c == nil {
		return nil
	}
	return c
}
