package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware resolves the caller from an API key header. Requests
// without a key continue anonymously; an unknown or revoked key is rejected.
func APIKeyAuthMiddleware(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Next()
		}

		ctx := c.UserContext()
		user, err := users.GetByAPIKeyHash(ctx, models.HashAPIKey(apiKey))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Respond(c, apperror.New(apperror.CodeNoUser, fiber.StatusUnauthorized, "Invalid API key"))
			}
			log.Errorf("[Auth] api key lookup failed: %v", err)
			return apperror.Respond(c, apperror.Internal(err))
		}

		if !user.IsActive() {
			return apperror.Respond(c, apperror.Forbidden("User inactive"))
		}

		// Refresh last-used timestamp best-effort.
		if err := users.TouchAPIKey(ctx, user.ID, time.Now()); err != nil {
			log.Warnf("[Auth] failed to update api key usage timestamp for user %d: %v", user.ID, err)
		}

		usercontext.Set(c, usercontext.FromUser(user))
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
