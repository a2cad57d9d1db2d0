package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/catalog"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/entitlements"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/gateway"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/gateway/gatewaytest"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/metrics"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/subscription"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc     *Service
	gw      *gatewaytest.Fake
	catalog *catalog.Service
	store   *subscription.Store
	repos   *repository.Repositories
	metrics *metrics.Metrics
	plans   map[models.PlanTier]*models.Plan
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	h := &harness{
		gw:      gatewaytest.NewFake(),
		repos:   repository.NewRepositories(db),
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		plans:   map[models.PlanTier]*models.Plan{},
	}
	for _, p := range entitlements.DefaultPlans() {
		require.NoError(t, h.repos.Plan.Create(ctx, &p))
		h.plans[p.Tier] = &p
	}
	h.catalog = catalog.NewService(h.repos.Plan, catalog.WithClock(clock))
	h.store = subscription.NewStore(h.repos.Subscription, h.catalog, subscription.WithClock(clock), subscription.WithMetrics(h.metrics))
	h.svc = NewServiceFromDB(db, h.catalog, h.store, h.gw, WithMetrics(h.metrics), WithPublicKeyID("rzp_test"))
	return h
}

func (h *harness) addOffer(t *testing.T, tier models.PlanTier, code string, pct float64, maxRedemptions int) {
	t.Helper()
	_, err := h.catalog.AddOffer(context.Background(), h.plans[tier].ID, catalog.OfferInput{
		Code:            code,
		DiscountPercent: pct,
		ValidFrom:       testNow.Add(-24 * time.Hour),
		ValidUntil:      testNow.Add(24 * time.Hour),
		MaxRedemptions:  maxRedemptions,
	})
	require.NoError(t, err)
}

func (h *harness) verify(t *testing.T, userID uint, tier models.PlanTier, orderID, paymentID, promo string) (*models.Subscription, error) {
	t.Helper()
	return h.svc.VerifyPayment(context.Background(), VerifyRequest{
		UserID:       userID,
		OrderID:      orderID,
		PaymentID:    paymentID,
		Signature:    gatewaytest.PaymentSignature(orderID, paymentID),
		PlanID:       h.plans[tier].ID,
		BillingCycle: "monthly",
		PromoCode:    promo,
	})
}

func webhookBody(event, orderID, paymentID string, amount int64, notes map[string]string) []byte {
	notesJSON := "[]"
	if len(notes) > 0 {
		notesJSON = fmt.Sprintf(`{"user_id":%q,"plan_id":%q,"billing_cycle":%q,"promo_code":%q}`,
			notes["user_id"], notes["plan_id"], notes["billing_cycle"], notes["promo_code"])
	}
	return []byte(fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":%d,"currency":"INR","status":"captured","notes":%s}}}}`,
		event, paymentID, orderID, amount, notesJSON))
}

func TestCreateOrderAppliesPromo(t *testing.T) {
	h := newHarness(t)
	h.addOffer(t, models.TierPro, "save20", 20, 10)

	res, err := h.svc.CreateOrder(context.Background(), OrderRequest{UserID: 4, PlanID: h.plans[models.TierPro].ID, BillingCycle: "monthly", PromoCode: "Save20"})
	require.NoError(t, err)

	order := h.gw.LastOrder()
	assert.Equal(t, int64(80000), order.AmountMinor)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, fmt.Sprintf("rcpt_4_%d", testNow.UnixMilli()), order.Receipt)
	assert.Equal(t, map[string]string{"user_id": "4", "plan_id": fmt.Sprint(h.plans[models.TierPro].ID), "billing_cycle": "monthly", "promo_code": "SAVE20"}, order.Notes)

	assert.Equal(t, "order_1", res.OrderID)
	assert.InDelta(t, 800.0, res.Amount, 0.001)
	assert.Equal(t, "SAVE20", res.PromoCode)
	assert.Equal(t, "rzp_test", res.KeyID)
}

func TestCreateOrderYearlyWithoutPromo(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateOrder(context.Background(), OrderRequest{UserID: 1, PlanID: h.plans[models.TierPremium].ID, BillingCycle: "yearly"})
	require.NoError(t, err)
	assert.Equal(t, int64(2500000), h.gw.LastOrder().AmountMinor)
}

func TestCreateOrderRejections(t *testing.T) {
	h := newHarness(t)
	h.addOffer(t, models.TierPro, "USED", 10, 0)
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, OrderRequest{UserID: 1, PlanID: h.plans[models.TierFree].ID, BillingCycle: "monthly"})
	assert.True(t, apperror.HasCode(err, apperror.CodeFreePlan))

	_, err = h.svc.CreateOrder(ctx, OrderRequest{UserID: 1, PlanID: 999, BillingCycle: "monthly"})
	assert.True(t, apperror.HasCode(err, apperror.CodePlanNotFound))

	_, err = h.svc.CreateOrder(ctx, OrderRequest{UserID: 1, PlanID: h.plans[models.TierPro].ID, BillingCycle: "weekly"})
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingInput))

	_, err = h.svc.CreateOrder(ctx, OrderRequest{UserID: 1, PlanID: h.plans[models.TierPro].ID, BillingCycle: "monthly", PromoCode: "USED"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPromo))

	_, err = h.svc.CreateOrder(ctx, OrderRequest{UserID: 1, PlanID: h.plans[models.TierPro].ID, BillingCycle: "monthly", PromoCode: "NOPE"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPromo))

	_, err = h.svc.CreateOrder(ctx, OrderRequest{PlanID: h.plans[models.TierPro].ID, BillingCycle: "monthly"})
	assert.True(t, apperror.HasCode(err, apperror.CodeNoUser))

	assert.Empty(t, h.gw.Orders)
}

func TestCreateOrderFailsClosedOnGatewayError(t *testing.T) {
	h := newHarness(t)
	h.gw.CreateErr = errors.New("connection refused")

	_, err := h.svc.CreateOrder(context.Background(), OrderRequest{UserID: 1, PlanID: h.plans[models.TierPro].ID, BillingCycle: "monthly"})
	assert.True(t, apperror.HasCode(err, apperror.CodeGatewayError))
}

func TestVerifyPaymentCreatesSubscription(t *testing.T) {
	h := newHarness(t)
	h.gw.Payments["pay_1"] = &gateway.Payment{ID: "pay_1", OrderID: "order_1", Amount: 100000, Currency: "INR",
		Notes: orderNotes(9, h.plans[models.TierPro].ID, models.BillingCycleMonthly, "")}

	sub, err := h.verify(t, 9, models.TierPro, "order_1", "pay_1", "")
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, h.plans[models.TierPro].ID, sub.PlanID)
	assert.Equal(t, 0, sub.Usage.LyricsGenerated+sub.Usage.MusicGenerated+sub.Usage.VideoGenerated+sub.Usage.VoiceGenerated)
	require.Len(t, sub.PaymentHistory, 1)
	assert.InDelta(t, 1000.0, sub.PaymentHistory[0].Amount, 0.001)
	assert.Equal(t, time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC), *sub.EndDate)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PaymentsTotal.WithLabelValues(models.PaymentSourceVerify, string(models.PaymentCaptured))))
}

func TestVerifyPaymentFallsBackToListPrice(t *testing.T) {
	h := newHarness(t)
	h.gw.FetchErr = errors.New("timeout")

	sub, err := h.verify(t, 9, models.TierPremium, "order_1", "pay_1", "")
	require.NoError(t, err)
	require.Len(t, sub.PaymentHistory, 1)
	assert.InDelta(t, 2500.0, sub.PaymentHistory[0].Amount, 0.001)
}

func TestVerifyPaymentRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.VerifyPayment(ctx, VerifyRequest{UserID: 1, OrderID: "order_1", PaymentID: "pay_1"})
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingPaymentInfo))

	_, err = h.svc.VerifyPayment(ctx, VerifyRequest{UserID: 1, OrderID: "order_1", PaymentID: "pay_1", Signature: "deadbeef",
		PlanID: h.plans[models.TierPro].ID, BillingCycle: "monthly"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))

	sub, err := h.store.GetForUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, sub, "a rejected verification must not create a subscription")
}

func TestVerifyPaymentRejectsRequestNotMatchingOrder(t *testing.T) {
	h := newHarness(t)
	h.addOffer(t, models.TierPro, "SAVE20", 20, 5)
	ctx := context.Background()
	pro := h.plans[models.TierPro].ID

	order, err := h.svc.CreateOrder(ctx, OrderRequest{UserID: 7, PlanID: pro, BillingCycle: "monthly"})
	require.NoError(t, err)
	h.gw.Capture(order.OrderID, "pay_1")
	sig := gatewaytest.PaymentSignature(order.OrderID, "pay_1")

	cases := []VerifyRequest{
		{UserID: 7, PlanID: h.plans[models.TierEnterprise].ID, BillingCycle: "yearly"},
		{UserID: 7, PlanID: pro, BillingCycle: "yearly"},
		{UserID: 7, PlanID: pro, BillingCycle: "monthly", PromoCode: "save20"},
		{UserID: 8, PlanID: pro, BillingCycle: "monthly"},
	}
	for _, req := range cases {
		req.OrderID, req.PaymentID, req.Signature = order.OrderID, "pay_1", sig
		_, err := h.svc.VerifyPayment(ctx, req)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature), "%+v", req)
	}
	for _, userID := range []uint{7, 8} {
		sub, err := h.store.GetForUser(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, sub)
	}
	plan, err := h.catalog.Get(ctx, pro)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.FindOffer("SAVE20").CurrentRedemptions)

	sub, err := h.svc.VerifyPayment(ctx, VerifyRequest{UserID: 7, OrderID: order.OrderID, PaymentID: "pay_1", Signature: sig,
		PlanID: pro, BillingCycle: "Monthly"})
	require.NoError(t, err)
	assert.Equal(t, pro, sub.PlanID)
	assert.Equal(t, time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC), *sub.EndDate)
	require.Len(t, sub.PaymentHistory, 1)
	assert.InDelta(t, 1000.0, sub.PaymentHistory[0].Amount, 0.001)
}

func TestVerifyPaymentRejectsPaymentWithoutOrderNotes(t *testing.T) {
	h := newHarness(t)
	h.gw.Payments["pay_2"] = &gateway.Payment{ID: "pay_2", OrderID: "order_2", Amount: 100000, Currency: "INR"}

	_, err := h.verify(t, 9, models.TierPro, "order_2", "pay_2", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))

	h.gw.Payments["pay_3"] = &gateway.Payment{ID: "pay_3", OrderID: "order_other", Amount: 100000,
		Notes: orderNotes(9, h.plans[models.TierPro].ID, models.BillingCycleMonthly, "")}
	_, err = h.verify(t, 9, models.TierPro, "order_3", "pay_3", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
}

func TestVerifyPaymentRedeemsPromoOnce(t *testing.T) {
	h := newHarness(t)
	h.addOffer(t, models.TierPro, "SAVE20", 20, 5)
	ctx := context.Background()

	_, err := h.verify(t, 3, models.TierPro, "order_1", "pay_1", "save20")
	require.NoError(t, err)
	sub, err := h.verify(t, 3, models.TierPro, "order_1", "pay_1", "save20")
	require.NoError(t, err)

	assert.Len(t, sub.PaymentHistory, 1)
	assert.Equal(t, "SAVE20", sub.AppliedPromo.Code)
	assert.InDelta(t, 20.0, sub.AppliedPromo.DiscountPercent, 0.001)

	plan, err := h.catalog.Get(ctx, h.plans[models.TierPro].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.FindOffer("SAVE20").CurrentRedemptions)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	body := webhookBody(gateway.EventPaymentCaptured, "order_1", "pay_1", 100, nil)

	_, err := h.svc.HandleWebhook(context.Background(), body, "", "evt_1")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))

	_, err = h.svc.HandleWebhook(context.Background(), body, gatewaytest.PaymentSignature("order_1", "pay_1"), "evt_1")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
}

func TestWebhookPaymentFailedMarksPastDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.verify(t, 5, models.TierPro, "order_5", "pay_5", "")
	require.NoError(t, err)

	body := webhookBody(gateway.EventPaymentFailed, "order_5", "pay_5_retry", 100000, nil)
	res, err := h.svc.HandleWebhook(ctx, body, gatewaytest.WebhookSignature(body), "evt_fail")
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultProcessed, res.Result)

	sub, err := h.store.GetForUser(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPastDue, sub.Status)
	assert.Equal(t, h.plans[models.TierPro].ID, sub.PlanID)
	require.Len(t, sub.PaymentHistory, 2)
	assert.Equal(t, models.PaymentFailed, sub.PaymentHistory[1].Status)
}

func TestWebhookCaptureAfterVerifyIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.verify(t, 5, models.TierPro, "order_5", "pay_5", "")
	require.NoError(t, err)

	body := webhookBody(gateway.EventPaymentCaptured, "order_5", "pay_5", 100000, nil)
	res, err := h.svc.HandleWebhook(ctx, body, gatewaytest.WebhookSignature(body), "")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	sub, err := h.store.GetForUser(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, sub.PaymentHistory, 1)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.verify(t, 5, models.TierPro, "order_5", "pay_5", "")
	require.NoError(t, err)
	body := webhookBody(gateway.EventPaymentFailed, "order_5", "pay_x", 100000, nil)
	sig := gatewaytest.WebhookSignature(body)

	first, err := h.svc.HandleWebhook(ctx, body, sig, "evt_dup")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := h.svc.HandleWebhook(ctx, body, sig, "evt_dup")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, models.WebhookResultProcessed, second.Result)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.WebhookEventsTotal.WithLabelValues(gateway.EventPaymentFailed, "duplicate")))

	events, err := h.svc.WebhookEventsForOrder(ctx, "order_5")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed())
}

func TestWebhookCaptureActivatesFromNotes(t *testing.T) {
	h := newHarness(t)
	h.addOffer(t, models.TierPremium, "LAUNCH", 50, -1)
	ctx := context.Background()
	notes := orderNotes(12, h.plans[models.TierPremium].ID, models.BillingCycleMonthly, "LAUNCH")

	body := webhookBody(gateway.EventPaymentCaptured, "order_12", "pay_12", 125000, notes)
	res, err := h.svc.HandleWebhook(ctx, body, gatewaytest.WebhookSignature(body), "evt_12")
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultProcessed, res.Result)
	assert.NotZero(t, res.SubscriptionID)

	sub, err := h.store.GetForUser(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, h.plans[models.TierPremium].ID, sub.PlanID)
	require.Len(t, sub.PaymentHistory, 1)
	assert.Equal(t, models.PaymentSourceWebhook, sub.PaymentHistory[0].Source)
	assert.InDelta(t, 1250.0, sub.PaymentHistory[0].Amount, 0.001)

	// the checkout callback for the same payment arrives late
	late, err := h.verify(t, 12, models.TierPremium, "order_12", "pay_12", "LAUNCH")
	require.NoError(t, err)
	assert.Len(t, late.PaymentHistory, 1)

	plan, err := h.catalog.Get(ctx, h.plans[models.TierPremium].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.FindOffer("LAUNCH").CurrentRedemptions)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	body := []byte(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1"}}}}`)
	res, err := h.svc.HandleWebhook(ctx, body, gatewaytest.WebhookSignature(body), "evt_r")
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultIgnored, res.Result)

	orphan := webhookBody(gateway.EventPaymentFailed, "order_unknown", "pay_z", 100, nil)
	res, err = h.svc.HandleWebhook(ctx, orphan, gatewaytest.WebhookSignature(orphan), "evt_o")
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultIgnored, res.Result)
}

func TestRecordWebhookEventHashesMissingID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := WebhookEventInput{Provider: "Gateway", EventType: "payment.captured", PayloadJSON: `{"a":1}`, SignatureValid: true}

	created, stored, err := h.svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.WebhookProviderGateway, stored.Provider)
	assert.Contains(t, stored.ProviderEventID, "hash:")

	created, again, err := h.svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)
	assert.False(t, again.Processed())
}
