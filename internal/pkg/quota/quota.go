// Package quota maps a feature, its usage and the plan limits to an allow/deny decision.
package quota

import (
	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
)

// Decision is the outcome of a quota check. Limit -1 means unlimited
// (Remaining is then -1), limit 0 means the feature is not part of the plan.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Current   int  `json:"current"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// Unlimited reports whether the plan has no cap for the feature.
func (d Decision) Unlimited() bool {
	return d.Limit == models.LimitUnlimited
}

// Unavailable reports whether the feature is excluded from the plan.
func (d Decision) Unavailable() bool {
	return d.Limit == models.LimitUnavailable
}

// Outcome is a short label used for metrics.
func (d Decision) Outcome() string {
	switch {
	case d.Unlimited():
		return "unlimited"
	case d.Unavailable():
		return "unavailable"
	case d.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}

// CheckLimit evaluates the quota for f. Unknown features, and features whose
// limit key is missing from the plan, are denied with a zero limit.
func CheckLimit(f feature.Type, usage models.Usage, limits models.PlanLimits) Decision {
	key := f.LimitKey()
	if key == "" {
		return Decision{}
	}
	limit, ok := limits[key]
	if !ok {
		limit = models.LimitUnavailable
	}
	current := usage.Count(f)

	switch {
	case limit == models.LimitUnlimited:
		return Decision{Allowed: true, Current: current, Limit: limit, Remaining: models.LimitUnlimited}
	case limit <= models.LimitUnavailable:
		return Decision{Allowed: false, Current: current, Limit: models.LimitUnavailable, Remaining: 0}
	default:
		return Decision{Allowed: current < limit, Current: current, Limit: limit, Remaining: max(0, limit-current)}
	}
}

// Snapshot evaluates every metered feature.
func Snapshot(usage models.Usage, limits models.PlanLimits) map[string]Decision {
	out := make(map[string]Decision, len(feature.All()))
	for _, f := range feature.All() {
		out[f.String()] = CheckLimit(f, usage, limits)
	}
	return out
}
