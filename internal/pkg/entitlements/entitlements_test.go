package entitlements

import (
	"testing"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLimits(t *testing.T) {
	tests := []struct {
		tier models.PlanTier
		want models.PlanLimits
	}{
		{models.TierFree, models.PlanLimits{"lyricsPerMonth": 5, "musicPerMonth": 2, "videoPerMonth": 0, "voicePerMonth": 0}},
		{models.TierPro, models.PlanLimits{"lyricsPerMonth": 100, "musicPerMonth": 50, "videoPerMonth": 10, "voicePerMonth": 20}},
		{models.TierPremium, models.PlanLimits{"lyricsPerMonth": -1, "musicPerMonth": 200, "videoPerMonth": 50, "voicePerMonth": 100}},
		{models.TierEnterprise, models.PlanLimits{"lyricsPerMonth": -1, "musicPerMonth": -1, "videoPerMonth": -1, "voicePerMonth": -1}},
		{"unknown", models.PlanLimits{"lyricsPerMonth": 5, "musicPerMonth": 2, "videoPerMonth": 0, "voicePerMonth": 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultLimits(tt.tier), string(tt.tier))
	}
}

func TestRankOrdering(t *testing.T) {
	assert.Less(t, Rank(models.TierFree), Rank(models.TierPro))
	assert.Less(t, Rank(models.TierPro), Rank(models.TierPremium))
	assert.Less(t, Rank(models.TierPremium), Rank(models.TierEnterprise))
}

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans()
	require.Len(t, plans, 4)

	seen := map[models.PlanTier]bool{}
	for i, p := range plans {
		assert.False(t, seen[p.Tier], "duplicate tier %s", p.Tier)
		seen[p.Tier] = true
		assert.True(t, p.IsActive)
		assert.Equal(t, i, p.SortOrder)
		assert.Equal(t, DefaultCurrency, p.Pricing.Currency)
		assert.Equal(t, DefaultLimits(p.Tier), p.LimitsMap())
	}

	assert.Equal(t, 1000.0, plans[1].Pricing.Monthly)
	assert.Equal(t, 10000.0, plans[1].Pricing.Yearly)
	assert.True(t, plans[0].IsFree())
}
