// Package usagegate decides whether a generation request may run and counts
// it afterwards.
package usagegate

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/metrics"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/quota"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usercontext"
)

// SubscriptionSource loads subscriptions with expiry and rollover applied.
type SubscriptionSource interface {
	GetForUser(ctx context.Context, userID uint) (*models.Subscription, error)
	IncrementUsage(ctx context.Context, sub *models.Subscription, f feature.Type) error
}

type Gate struct {
	subs    SubscriptionSource
	metrics *metrics.Metrics
}

func New(subs SubscriptionSource, m *metrics.Metrics) *Gate {
	return &Gate{subs: subs, metrics: m}
}

// Check returns the caller's subscription when f may be used, or a policy
// rejection. When the subscription cannot be loaded the request is let through
// with a nil subscription and no error.
func (g *Gate) Check(ctx context.Context, userID uint, f feature.Type) (*models.Subscription, error) {
	if userID == 0 {
		return nil, apperror.NoUser()
	}

	sub, err := g.subs.GetForUser(ctx, userID)
	if err != nil {
		log.Errorf("[UsageGate] subscription lookup for user %d failed, allowing %s: %v", userID, f, err)
		g.metrics.FailOpen("check")
		return nil, nil
	}
	if sub == nil || sub.Plan == nil {
		g.metrics.QuotaDecision(f.String(), "no_subscription")
		return nil, apperror.NoSubscription()
	}
	if !sub.Status.Entitling() {
		g.metrics.QuotaDecision(f.String(), "inactive")
		return nil, apperror.SubscriptionInactive(string(sub.Status))
	}

	d := quota.CheckLimit(f, sub.Usage, sub.Plan.LimitsMap())
	g.metrics.QuotaDecision(f.String(), d.Outcome())
	if d.Allowed {
		return sub, nil
	}
	if d.Limit == models.LimitUnavailable {
		return nil, apperror.FeatureNotAvailable(f.String())
	}
	return nil, apperror.UsageLimitReached(f.String()).
		With("current", d.Current).
		With("limit", d.Limit).
		With("remaining", d.Remaining).
		With("periodEnd", sub.Usage.PeriodEnd)
}

// Require gates a route on a fixed feature.
func (g *Gate) Require(f feature.Type) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return g.handle(c, f)
	}
}

// RequireParam gates a route on the feature named by a path parameter.
// Unknown names are rejected as unavailable features.
func (g *Gate) RequireParam(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := feature.Parse(c.Params(param))
		if f == feature.Unknown {
			return apperror.Respond(c, apperror.FeatureNotAvailable(c.Params(param)))
		}
		return g.handle(c, f)
	}
}

func (g *Gate) handle(c *fiber.Ctx, f feature.Type) error {
	sub, err := g.Check(c.UserContext(), usercontext.GetUserID(c), f)
	if err != nil {
		return apperror.Respond(c, err)
	}
	c.Locals(usercontext.KeyFeature, f)
	usercontext.SetSubscription(c, sub)
	return c.Next()
}

// FeatureFromContext returns the feature the gate admitted the request for.
func FeatureFromContext(c *fiber.Ctx) feature.Type {
	f, _ := c.Locals(usercontext.KeyFeature).(feature.Type)
	return f
}
