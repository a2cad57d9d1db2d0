// Package ratelimit throttles API callers with fiber's limiter, sharing its
// counters across instances through redis.
package ratelimit

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
)

// CodeRateLimited is returned when a caller exceeds the request budget.
const CodeRateLimited = "RATE_LIMITED"

// limiterDatabase keeps limiter keys apart from the plan cache in DB 0.
const limiterDatabase = 1

// NewStorage returns redis storage for limiter counters.
func NewStorage(cfg config.Cache) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Warnf("[RateLimit] invalid cache port %q, using 6379", cfg.Port)
		port = 6379
	}
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}

// New builds the limiter middleware. A nil storage keeps counters in memory.
func New(cfg config.RateLimit, storage fiber.Storage) fiber.Handler {
	limit := cfg.Max
	if limit <= 0 {
		limit = 120
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:          limit,
		Expiration:   window,
		Storage:      storage,
		KeyGenerator: Key,
		LimitReached: func(c *fiber.Ctx) error {
			return apperror.Respond(c, apperror.New(CodeRateLimited, fiber.StatusTooManyRequests, "Too many requests"))
		},
	})
}

// Key buckets requests by API key when one is sent and by client IP otherwise.
// Raw keys never reach the storage.
func Key(c *fiber.Ctx) string {
	key := strings.TrimSpace(c.Get("X-API-Key"))
	if key == "" {
		auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			key = strings.TrimSpace(auth[7:])
		}
	}
	if key != "" {
		return "key:" + models.HashAPIKey(key)
	}
	return "ip:" + c.IP()
}
