// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	QuotaDecisionsTotal *prometheus.CounterVec
	UsageFailOpenTotal  *prometheus.CounterVec
	UsageRecordedTotal  *prometheus.CounterVec
	PaymentsTotal       *prometheus.CounterVec
	WebhookEventsTotal  *prometheus.CounterVec
	CatalogCacheTotal   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them, plus the Go runtime
// and process collectors, on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soundsmith_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soundsmith_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soundsmith_quota_decisions_total",
				Help: "Usage gate decisions by feature and outcome",
			},
			[]string{"feature", "outcome"},
		),
		UsageFailOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soundsmith_usage_fail_open_total",
				Help: "Usage checks or increments that failed and were let through",
			},
			[]string{"stage"},
		),
		UsageRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soundsmith_usage_recorded_total",
				Help: "Successful generations counted against a quota",
			},
			[]string{"feature"},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soundsmith_payments_total",
				Help: "Payments applied to subscriptions by source and status",
			},
			[]string{"source", "status"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soundsmith_webhook_events_total",
				Help: "Gateway webhook deliveries by event type and result",
			},
			[]string{"event", "result"},
		),
		CatalogCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soundsmith_catalog_cache_total",
				Help: "Plan catalog cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QuotaDecisionsTotal,
		m.UsageFailOpenTotal,
		m.UsageRecordedTotal,
		m.PaymentsTotal,
		m.WebhookEventsTotal,
		m.CatalogCacheTotal,
	)
	return m
}

func (m *Metrics) QuotaDecision(feature, outcome string) {
	if m == nil {
		return
	}
	m.QuotaDecisionsTotal.WithLabelValues(feature, outcome).Inc()
}

func (m *Metrics) FailOpen(stage string) {
	if m == nil {
		return
	}
	m.UsageFailOpenTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) UsageRecorded(feature string) {
	if m == nil {
		return
	}
	m.UsageRecordedTotal.WithLabelValues(feature).Inc()
}

func (m *Metrics) Payment(source, status string) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(source, status).Inc()
}

func (m *Metrics) WebhookEvent(event, result string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(event, result).Inc()
}

func (m *Metrics) CatalogCache(result string) {
	if m == nil {
		return
	}
	m.CatalogCacheTotal.WithLabelValues(result).Inc()
}

// Middleware records request count and latency labelled by the matched route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
