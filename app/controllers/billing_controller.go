package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/billing"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

const (
	HeaderGatewaySignature = "X-Gateway-Signature"
	HeaderGatewayEventID   = "X-Gateway-Event-Id"
)

type BillingController struct {
	billing *billing.Service
}

// NewBillingController creates a new billing controller
func NewBillingController(s *billing.Service) *BillingController {
	return &BillingController{billing: s}
}

// HandleCreateOrder opens a gateway order for a paid plan.
func (bc *BillingController) HandleCreateOrder(c *fiber.Ctx) error {
	var req billing.OrderRequest
	if err := parseBody(c, &req); err != nil {
		return apperror.Respond(c, err)
	}
	req.UserID = usercontext.GetUserID(c)
	req.BillingCycle = strings.ToLower(strings.TrimSpace(req.BillingCycle))
	if err := apperror.Validate(req); err != nil {
		return apperror.Respond(c, err)
	}

	order, err := bc.billing.CreateOrder(c.UserContext(), req)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusCreated, order)
}

// HandleVerifyPayment activates the plan paid for in the checkout.
func (bc *BillingController) HandleVerifyPayment(c *fiber.Ctx) error {
	var req billing.VerifyRequest
	if err := parseBody(c, &req); err != nil {
		return apperror.Respond(c, err)
	}
	req.UserID = usercontext.GetUserID(c)

	sub, err := bc.billing.VerifyPayment(c.UserContext(), req)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, sub)
}

// HandleWebhook receives gateway events. The signature covers the raw body.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	res, err := bc.billing.HandleWebhook(c.UserContext(), body, c.Get(HeaderGatewaySignature), c.Get(HeaderGatewayEventID))
	if err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"event":     res.Event,
		"result":    res.Result,
		"duplicate": res.Duplicate,
	})
}

// HandleAdminWebhookEvents lists the webhook deliveries recorded for an order.
func (bc *BillingController) HandleAdminWebhookEvents(c *fiber.Ctx) error {
	orderID := strings.TrimSpace(c.Params("orderId"))
	if orderID == "" {
		return apperror.Respond(c, apperror.MissingInput("Order id is required"))
	}
	events, err := bc.billing.WebhookEventsForOrder(c.UserContext(), orderID)
	if err != nil {
		return apperror.Respond(c, apperror.Internal(err))
	}
	return respondData(c, fiber.StatusOK, events)
}
