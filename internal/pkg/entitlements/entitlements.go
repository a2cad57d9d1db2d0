package entitlements

import (
	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
)

// DefaultCurrency is used for every seeded plan.
const DefaultCurrency = "INR"

// DefaultLimits returns the seed quotas for a tier. Unknown tiers get the free quotas.
func DefaultLimits(tier models.PlanTier) models.PlanLimits {
	switch tier {
	case models.TierEnterprise:
		return limits(-1, -1, -1, -1)
	case models.TierPremium:
		return limits(-1, 200, 50, 100)
	case models.TierPro:
		return limits(100, 50, 10, 20)
	default:
		return limits(5, 2, 0, 0)
	}
}

func limits(lyrics, music, video, voice int) models.PlanLimits {
	return models.PlanLimits{
		feature.Lyrics.LimitKey(): lyrics,
		feature.Music.LimitKey():  music,
		feature.Video.LimitKey():  video,
		feature.Voice.LimitKey():  voice,
	}
}

// Rank orders tiers from free (0) to enterprise (3).
func Rank(tier models.PlanTier) int {
	switch tier {
	case models.TierEnterprise:
		return 3
	case models.TierPremium:
		return 2
	case models.TierPro:
		return 1
	default:
		return 0
	}
}

// DefaultPlans returns the seed catalog in display order.
func DefaultPlans() []models.Plan {
	specs := []struct {
		tier    models.PlanTier
		name    string
		desc    string
		monthly float64
		yearly  float64
		flags   models.PlanFeatures
	}{
		{models.TierFree, "Free", "Try lyrics and music generation", 0, 0,
			models.PlanFeatures{"support": "community", "commercialUse": false}},
		{models.TierPro, "Pro", "For independent creators", 1000, 10000,
			models.PlanFeatures{"support": "email", "commercialUse": true}},
		{models.TierPremium, "Premium", "Unlimited lyrics and more media", 2500, 25000,
			models.PlanFeatures{"support": "priority", "commercialUse": true, "stemExport": true}},
		{models.TierEnterprise, "Enterprise", "Unlimited everything", 10000, 100000,
			models.PlanFeatures{"support": "dedicated", "commercialUse": true, "stemExport": true, "sla": true}},
	}

	plans := make([]models.Plan, 0, len(specs))
	for _, s := range specs {
		p := models.Plan{
			Name:        s.name,
			Tier:        s.tier,
			Description: s.desc,
			Pricing:     models.Pricing{Monthly: s.monthly, Yearly: s.yearly, Currency: DefaultCurrency},
			IsActive:    true,
			SortOrder:   Rank(s.tier),
		}
		p.SetLimits(DefaultLimits(s.tier))
		p.SetFeatures(s.flags)
		plans = append(plans, p)
	}
	return plans
}
