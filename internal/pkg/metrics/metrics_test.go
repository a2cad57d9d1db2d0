package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.QuotaDecision("lyrics", "denied")
	m.QuotaDecision("lyrics", "denied")
	m.FailOpen("check")
	m.Payment("verify", "captured")
	m.WebhookEvent("payment.failed", "processed")
	m.CatalogCache("hit")
	m.UsageRecorded("music")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QuotaDecisionsTotal.WithLabelValues("lyrics", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsageFailOpenTotal.WithLabelValues("check")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentsTotal.WithLabelValues("verify", "captured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEventsTotal.WithLabelValues("payment.failed", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsageRecordedTotal.WithLabelValues("music")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QuotaDecision("lyrics", "allowed")
		m.FailOpen("record")
		m.Payment("webhook", "failed")
		m.WebhookEvent("x", "ignored")
		m.CatalogCache("miss")
		m.UsageRecorded("voice")
	})
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/plans/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusTeapot) })

	resp, err := app.Test(httptest.NewRequest("GET", "/plans/7", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/plans/:id", "418")))
}
