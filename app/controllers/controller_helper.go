package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.MissingInput("Invalid " + name).With("field", name)
	}
	return uint(id), nil
}

// parseBody decodes the JSON request body into dst.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperror.MissingInput("Request body must be valid JSON")
	}
	return nil
}

// pagination reads page and limit query parameters and returns offset and limit.
func pagination(c *fiber.Ctx) (page, limit, offset int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

func respondData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}
