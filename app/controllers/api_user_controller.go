package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/subscription"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

type UserController struct {
	users repository.UserRepository
	store *subscription.Store
}

// NewUserController creates a new user controller
func NewUserController(users repository.UserRepository, store *subscription.Store) *UserController {
	return &UserController{users: users, store: store}
}

// HandleGetAccount returns account information for the authenticated user,
// including the current plan and usage when a subscription exists.
func (uc *UserController) HandleGetAccount(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	account, err := uc.users.GetByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Respond(c, apperror.NotFound("User"))
		}
		return apperror.Respond(c, err)
	}

	var usage any
	sub, err := uc.store.GetForUser(c.UserContext(), userID)
	if err != nil {
		log.Warnf("[Account] failed to load subscription for user %d: %v", userID, err)
	} else if sub != nil {
		usage = subscription.Summarize(sub)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{
		"id":                   account.ID,
		"name":                 account.Name,
		"email":                account.Email,
		"role":                 account.Role,
		"status":               account.Status,
		"api_key_prefix":       account.APIKeyPrefix,
		"api_key_created_at":   formatTimePtr(account.APIKeyCreatedAt),
		"api_key_last_used_at": formatTimePtr(account.APIKeyLastUsedAt),
		"subscription":         usage,
	})
}

// HandleIssueAPIKey replaces a user's API key. The raw key is only returned here.
func (uc *UserController) HandleIssueAPIKey(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return apperror.Respond(c, err)
	}
	user, err := uc.users.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Respond(c, apperror.NotFound("User"))
		}
		return apperror.Respond(c, err)
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		return apperror.Respond(c, apperror.Internal(err))
	}
	if err := uc.users.Update(c.UserContext(), user); err != nil {
		return apperror.Respond(c, err)
	}
	log.Infof("[Account] admin %d issued a new api key for user %d", usercontext.GetUserID(c), user.ID)

	return respondData(c, fiber.StatusCreated, fiber.Map{
		"user_id":    user.ID,
		"api_key":    rawKey,
		"prefix":     user.APIKeyPrefix,
		"created_at": formatTimePtr(user.APIKeyCreatedAt),
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
