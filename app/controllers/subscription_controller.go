package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/catalog"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/subscription"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

// SubscriptionController handles the caller's own subscription and the admin
// subscription views.
type SubscriptionController struct {
	store   *subscription.Store
	catalog *catalog.Service
}

// NewSubscriptionController creates a new subscription controller
func NewSubscriptionController(store *subscription.Store, c *catalog.Service) *SubscriptionController {
	return &SubscriptionController{store: store, catalog: c}
}

func (sc *SubscriptionController) current(c *fiber.Ctx) (*models.Subscription, error) {
	sub, err := sc.store.GetForUser(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.NoSubscription()
	}
	return sub, nil
}

// HandleGet returns the caller's subscription after any pending rollover.
func (sc *SubscriptionController) HandleGet(c *fiber.Ctx) error {
	sub, err := sc.current(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, sub)
}

// HandleUsage returns the per-feature quota snapshot of the current period.
func (sc *SubscriptionController) HandleUsage(c *fiber.Ctx) error {
	sub, err := sc.current(c)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, subscription.Summarize(sub))
}

// HandleRegisterFree gives the caller the free plan if they have no subscription
// yet or their previous one expired or was cancelled.
func (sc *SubscriptionController) HandleRegisterFree(c *fiber.Ctx) error {
	sub, created, err := sc.store.EnsureFreeSubscription(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return apperror.Respond(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return respondData(c, status, sub)
}

func (sc *SubscriptionController) HandleCancel(c *fiber.Ctx) error {
	sub, err := sc.store.Cancel(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, sub)
}

type overrideRequest struct {
	PlanID uint   `json:"plan_id" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// HandleAdminOverride assigns a plan to a user without payment.
func (sc *SubscriptionController) HandleAdminOverride(c *fiber.Ctx) error {
	userID, err := parseIDParam(c, "userId")
	if err != nil {
		return apperror.Respond(c, err)
	}
	var req overrideRequest
	if err := parseBody(c, &req); err != nil {
		return apperror.Respond(c, err)
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := apperror.Validate(req); err != nil {
		return apperror.Respond(c, err)
	}

	plan, err := sc.catalog.GetActive(c.UserContext(), req.PlanID)
	if err != nil {
		return apperror.Respond(c, err)
	}
	sub, err := sc.store.ApplyAdminOverride(c.UserContext(), subscription.OverrideInput{
		UserID:  userID,
		Plan:    plan,
		AdminID: usercontext.GetUserID(c),
		Reason:  req.Reason,
	})
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, sub)
}

// HandleAdminList returns a filtered page of subscriptions.
func (sc *SubscriptionController) HandleAdminList(c *fiber.Ctx) error {
	page, limit, offset := pagination(c)
	filter := repository.SubscriptionFilter{
		Status: models.SubscriptionStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Tier:   models.PlanTier(strings.ToLower(strings.TrimSpace(c.Query("tier")))),
		Offset: offset,
		Limit:  limit,
	}
	subs, total, err := sc.store.List(c.UserContext(), filter)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    subs,
		"meta": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// HandleAnalytics returns subscriber counts, the tier breakdown and revenue totals.
func (sc *SubscriptionController) HandleAnalytics(c *fiber.Ctx) error {
	stats, err := sc.store.Analytics(c.UserContext())
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, stats)
}
