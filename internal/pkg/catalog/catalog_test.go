package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/cache"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/entitlements"
)

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, repository.PlanRepository, *miniredis.Miniredis) {
	t.Helper()
	repo := repository.NewPlanRepository(dbtest.Open(t))
	for _, p := range entitlements.DefaultPlans() {
		p := p
		require.NoError(t, repo.Create(context.Background(), &p))
	}
	mr := miniredis.RunT(t)
	c := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	svc := NewService(repo, WithCache(c), WithClock(func() time.Time { return fixedNow }))
	return svc, repo, mr
}

func proPlan(t *testing.T, svc *Service) *models.Plan {
	t.Helper()
	p, err := svc.GetByTier(context.Background(), models.TierPro)
	require.NoError(t, err)
	return p
}

func offerInput(code string) OfferInput {
	return OfferInput{
		Code:            code,
		DiscountPercent: 20,
		ValidFrom:       fixedNow.AddDate(0, -1, 0),
		ValidUntil:      fixedNow.AddDate(0, 1, 0),
		MaxRedemptions:  2,
	}
}

func TestListActiveUsesCacheAndInvalidates(t *testing.T) {
	ctx := context.Background()
	svc, repo, mr := newService(t)

	plans, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 4)
	assert.True(t, mr.Exists(ActivePlansKey))

	// A direct repository write is invisible until the cache is dropped.
	pro := proPlan(t, svc)
	pro.IsActive = false
	require.NoError(t, repo.Update(ctx, pro))
	plans, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 4)

	svc.Invalidate(ctx)
	assert.False(t, mr.Exists(ActivePlansKey))
	plans, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 3)
}

func TestListActiveFallsBackWhenCacheDown(t *testing.T) {
	svc, _, mr := newService(t)
	mr.Close()

	plans, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, plans, 4)
}

func TestCreateRejectsDuplicateTier(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), PlanInput{Name: "Pro 2", Tier: "pro", Limits: map[string]int{"lyricsPerMonth": 10}})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, PlanInput{Name: "", Tier: "gold", Limits: map[string]int{}})
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingInput))

	_, err = svc.Create(ctx, PlanInput{Name: "Weird", Tier: "pro", Limits: map[string]int{"podcastsPerMonth": 1}})
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingInput))

	_, err = svc.Create(ctx, PlanInput{Name: "Weird", Tier: "pro", Limits: map[string]int{"lyricsPerMonth": -2}})
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingInput))
}

func TestUpdateAndDeleteInvalidateCache(t *testing.T) {
	ctx := context.Background()
	svc, _, mr := newService(t)
	pro := proPlan(t, svc)

	_, err := svc.ListActive(ctx)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, pro.ID, PlanInput{Name: "Pro+", Tier: "pro", Monthly: 1200, Yearly: 12000,
		Limits: map[string]int{"lyricsPerMonth": 150, "musicPerMonth": 60}})
	require.NoError(t, err)
	assert.Equal(t, "Pro+", updated.Name)
	assert.Equal(t, 0, updated.LimitsMap()["videoPerMonth"])
	assert.True(t, updated.IsActive)
	assert.False(t, mr.Exists(ActivePlansKey))

	_, err = svc.Update(ctx, pro.ID, PlanInput{Name: "Clash", Tier: "premium", Limits: map[string]int{}})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	require.NoError(t, svc.Delete(ctx, pro.ID))
	assert.True(t, apperror.HasCode(svc.Delete(ctx, pro.ID), apperror.CodePlanNotFound))
	_, err = svc.GetActive(ctx, pro.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodePlanNotFound))
}

func TestOffers(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	pro := proPlan(t, svc)

	offer, err := svc.AddOffer(ctx, pro.ID, offerInput(" save20 "))
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", offer.Code)
	assert.True(t, offer.IsActive)

	_, err = svc.AddOffer(ctx, pro.ID, offerInput("Save20"))
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	bad := offerInput("BAD")
	bad.ValidUntil = bad.ValidFrom.Add(-time.Hour)
	_, err = svc.AddOffer(ctx, pro.ID, bad)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingInput))

	_, err = svc.AddOffer(ctx, 9999, offerInput("X"))
	assert.True(t, apperror.HasCode(err, apperror.CodePlanNotFound))

	assert.True(t, apperror.HasCode(svc.RemoveOffer(ctx, pro.ID, "NOPE"), apperror.CodeNotFound))
	require.NoError(t, svc.RemoveOffer(ctx, pro.ID, "save20"))
}

func TestValidatePromo(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	pro := proPlan(t, svc)

	_, err := svc.AddOffer(ctx, pro.ID, offerInput("SAVE20"))
	require.NoError(t, err)
	expired := offerInput("OLD")
	expired.ValidUntil = fixedNow.Add(-time.Second)
	_, err = svc.AddOffer(ctx, pro.ID, expired)
	require.NoError(t, err)
	inactive := offerInput("OFF")
	no := false
	inactive.IsActive = &no
	_, err = svc.AddOffer(ctx, pro.ID, inactive)
	require.NoError(t, err)

	plan, offer, err := svc.ValidatePromo(ctx, pro.ID, "save20")
	require.NoError(t, err)
	assert.Equal(t, pro.ID, plan.ID)
	assert.Equal(t, 20.0, offer.DiscountPercent)

	for _, code := range []string{"OLD", "OFF", "UNKNOWN"} {
		_, _, err = svc.ValidatePromo(ctx, pro.ID, code)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPromo), code)
	}

	_, _, err = svc.ValidatePromo(ctx, pro.ID, " ")
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingInput))
}

func TestRedeemOfferOncePerPaymentAndExhaustion(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	pro := proPlan(t, svc)
	_, err := svc.AddOffer(ctx, pro.ID, offerInput("SAVE20"))
	require.NoError(t, err)

	pro = proPlan(t, svc)
	ok, err := svc.RedeemOffer(ctx, pro, "save20", 1, "pay_1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.RedeemOffer(ctx, pro, "SAVE20", 1, "pay_1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.RedeemOffer(ctx, pro, "SAVE20", 2, "pay_2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.RedeemOffer(ctx, pro, "missing", 2, "pay_3")
	require.NoError(t, err)
	assert.False(t, ok)

	pro = proPlan(t, svc)
	assert.Equal(t, 2, pro.FindOffer("SAVE20").CurrentRedemptions)
	_, _, err = svc.ValidatePromo(ctx, pro.ID, "SAVE20")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPromo), "exhausted offers are rejected")
}
