package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/app/models"
)

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// FromUser builds the context of an authenticated user
func FromUser(u *models.User) UserContext {
	return UserContext{
		UserID:     u.ID,
		Name:       u.Name,
		Email:      u.Email,
		IsLoggedIn: true,
		IsAdmin:    u.IsAdmin(),
	}
}

// Set stores uc and the legacy per-field locals on c
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyUserID, uc.UserID)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return uc
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// SetSubscription attaches the subscription loaded by the usage gate
func SetSubscription(c *fiber.Ctx, sub *models.Subscription) {
	c.Locals(KeySubscription, sub)
}

// GetSubscription returns the subscription attached by the usage gate, or nil
// when the gate let the request through without one
func GetSubscription(c *fiber.Ctx) *models.Subscription {
	sub, _ := c.Locals(KeySubscription).(*models.Subscription)
	return sub
}
