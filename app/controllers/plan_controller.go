package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/catalog"
)

// PlanController serves the public plan catalog and the admin plan editor.
type PlanController struct {
	catalog *catalog.Service
}

// NewPlanController creates a new plan controller
func NewPlanController(c *catalog.Service) *PlanController {
	return &PlanController{catalog: c}
}

// HandleListActive returns the plans customers can subscribe to.
func (pc *PlanController) HandleListActive(c *fiber.Ctx) error {
	plans, err := pc.catalog.ListActive(c.UserContext())
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, plans)
}

type promoRequest struct {
	PlanID uint   `json:"plan_id" validate:"required"`
	Code   string `json:"code" validate:"required,max=50"`
}

// HandleValidatePromo checks a promo code against a plan without redeeming it.
func (pc *PlanController) HandleValidatePromo(c *fiber.Ctx) error {
	var req promoRequest
	if err := parseBody(c, &req); err != nil {
		return apperror.Respond(c, err)
	}
	req.Code = strings.TrimSpace(req.Code)
	if err := apperror.Validate(req); err != nil {
		return apperror.Respond(c, err)
	}

	plan, offer, err := pc.catalog.ValidatePromo(c.UserContext(), req.PlanID, req.Code)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{
		"valid":            true,
		"plan_id":          plan.ID,
		"code":             offer.Code,
		"description":      offer.Description,
		"discount_percent": offer.DiscountPercent,
		"valid_until":      offer.ValidUntil,
	})
}

// HandleAdminList returns all plans including inactive ones.
func (pc *PlanController) HandleAdminList(c *fiber.Ctx) error {
	plans, err := pc.catalog.ListAll(c.UserContext())
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, plans)
}

func (pc *PlanController) HandleCreate(c *fiber.Ctx) error {
	var in catalog.PlanInput
	if err := parseBody(c, &in); err != nil {
		return apperror.Respond(c, err)
	}
	plan, err := pc.catalog.Create(c.UserContext(), in)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusCreated, plan)
}

func (pc *PlanController) HandleUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return apperror.Respond(c, err)
	}
	var in catalog.PlanInput
	if err := parseBody(c, &in); err != nil {
		return apperror.Respond(c, err)
	}
	plan, err := pc.catalog.Update(c.UserContext(), id, in)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, plan)
}

func (pc *PlanController) HandleDelete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return apperror.Respond(c, err)
	}
	if err := pc.catalog.Delete(c.UserContext(), id); err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (pc *PlanController) HandleAddOffer(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return apperror.Respond(c, err)
	}
	var in catalog.OfferInput
	if err := parseBody(c, &in); err != nil {
		return apperror.Respond(c, err)
	}
	offer, err := pc.catalog.AddOffer(c.UserContext(), id, in)
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusCreated, offer)
}

func (pc *PlanController) HandleRemoveOffer(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return apperror.Respond(c, err)
	}
	if err := pc.catalog.RemoveOffer(c.UserContext(), id, c.Params("code")); err != nil {
		return apperror.Respond(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
