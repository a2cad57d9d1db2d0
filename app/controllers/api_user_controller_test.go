package controllers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	berlin := time.FixedZone("CEST", 2*60*60)
	at := time.Date(2026, time.May, 15, 11, 30, 0, 0, berlin)
	assert.Equal(t, "2026-05-15T09:30:00Z", formatTimePtr(&at))
}

func TestGetAccountReportsAPIKeyMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "keys@example.com")

	r := env.do(t, fiber.MethodGet, "/account", u.ID, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "", data(r)["api_key_prefix"])
	assert.Nil(t, data(r)["api_key_last_used_at"])
	assert.Nil(t, data(r)["subscription"])

	r = env.do(t, fiber.MethodPost, fmt.Sprintf("/admin/users/%d/api-key", u.ID), 1, nil, headerTestAdmin, "1")
	require.Equal(t, fiber.StatusCreated, r.status)
	prefix := data(r)["prefix"]
	require.NoError(t, env.repos.User.TouchAPIKey(ctx, u.ID, testNow))

	r = env.do(t, fiber.MethodGet, "/account", u.ID, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, prefix, data(r)["api_key_prefix"])
	assert.Equal(t, "2026-05-15T09:30:00Z", data(r)["api_key_last_used_at"])
	assert.NotEmpty(t, data(r)["api_key_created_at"])
	assert.NotContains(t, data(r), "api_key")

	r = env.do(t, fiber.MethodGet, "/account", 4242, nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
}
