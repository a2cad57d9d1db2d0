package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	icuser "github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

// RequireAuth rejects requests without an authenticated user.
func RequireAuth(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return apperror.Respond(c, apperror.NoUser())
	}
	return c.Next()
}

// RequireAdmin rejects requests unless the caller is an administrator.
func RequireAdmin(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return apperror.Respond(c, apperror.NoUser())
	}
	if !icuser.IsAdmin(c) {
		return apperror.Respond(c, apperror.Forbidden("Administrator access required"))
	}
	return c.Next()
}
