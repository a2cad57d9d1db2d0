package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/cache"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/database"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/env"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/ratelimit"
)

// Run boots the application from the environment and serves until Listen fails.
func Run() error {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, key := range cfg.Validate() {
		log.Warnf("[Server] %s is not configured", key)
	}

	if err := database.SetupDatabase(cfg.Database, cfg.IsDev()); err != nil {
		return fmt.Errorf("setup database: %w", err)
	}
	cacheClient := cache.SetupCache(cfg.Cache)
	limiter := ratelimit.New(cfg.RateLimit, ratelimit.NewStorage(cfg.Cache))

	repository.InitializeFactory(database.GetDB())
	services, err := NewServices(cfg, repository.GetGlobalFactory(), Options{Cache: CatalogCache(cacheClient)})
	if err != nil {
		return err
	}

	app := NewApplication(cfg, services, limiter)
	log.Infof("[Server] %s listening on %s", cfg.App.Name, Address(cfg))
	return app.Listen(Address(cfg))
}
