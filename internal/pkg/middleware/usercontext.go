package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

// UserContextMiddleware sets an anonymous user context for every request.
// Authentication middlewares replace it later in the chain.
func UserContextMiddleware(c *fiber.Ctx) error {
	usercontext.Set(c, usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	return c.Next()
}
