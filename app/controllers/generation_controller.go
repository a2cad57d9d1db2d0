package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/generation"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usagegate"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

// GenerationController proxies generation requests to the configured vendors.
// Routes are expected behind usagegate so the feature is already admitted.
type GenerationController struct {
	generation *generation.Service
	recorder   *usagegate.Recorder
}

// NewGenerationController creates a new generation controller
func NewGenerationController(g *generation.Service, r *usagegate.Recorder) *GenerationController {
	return &GenerationController{generation: g, recorder: r}
}

// HandleGenerate forwards the body to the vendor and counts one use on success.
func (gc *GenerationController) HandleGenerate(c *fiber.Ctx) error {
	f := usagegate.FeatureFromContext(c)
	if !f.Valid() {
		f = feature.Parse(c.Params("feature"))
	}
	if !f.Valid() {
		return apperror.Respond(c, apperror.FeatureNotAvailable(c.Params("feature")))
	}
	userID := usercontext.GetUserID(c)

	resp, err := gc.generation.Forward(c.UserContext(), f, userID, c.Body())
	if err != nil {
		return apperror.Respond(c, err)
	}
	if resp.Success() {
		gc.recorder.Record(c.UserContext(), userID, f)
	} else {
		log.Warnf("[Generation] vendor for %s answered %d to user %d (request %s)", f, resp.StatusCode, userID, resp.RequestID)
	}

	c.Set(generation.HeaderRequestID, resp.RequestID)
	if resp.ContentType != "" {
		c.Set(fiber.HeaderContentType, resp.ContentType)
	}
	return c.Status(resp.StatusCode).Send(resp.Body)
}

// HandleSetVendor stores the endpoint and API key used for a feature.
func (gc *GenerationController) HandleSetVendor(c *fiber.Ctx) error {
	f := feature.Parse(c.Params("feature"))
	var in generation.VendorInput
	if err := parseBody(c, &in); err != nil {
		return apperror.Respond(c, err)
	}
	cred, err := gc.generation.SetVendor(c.UserContext(), f, in, usercontext.GetUserID(c))
	if err != nil {
		return apperror.Respond(c, err)
	}
	return respondData(c, fiber.StatusOK, cred)
}
