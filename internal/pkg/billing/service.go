package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/gateway"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/metrics"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/subscription"
)

// PlanCatalog is the part of the plan catalog used by billing.
type PlanCatalog interface {
	Get(ctx context.Context, id uint) (*models.Plan, error)
	GetActive(ctx context.Context, id uint) (*models.Plan, error)
	FindValidOffer(plan *models.Plan, code string, now time.Time) (*models.Offer, error)
	RedeemOffer(ctx context.Context, plan *models.Plan, code string, userID uint, paymentID string) (bool, error)
}

// SubscriptionStore is the part of the subscription store used by billing.
type SubscriptionStore interface {
	Now() time.Time
	ActivatePaid(ctx context.Context, in subscription.ActivationInput) (*models.Subscription, bool, error)
	RecordCapture(ctx context.Context, p subscription.GatewayPayment) (*models.Subscription, bool, error)
	MarkPastDue(ctx context.Context, p subscription.GatewayPayment) (*models.Subscription, bool, error)
}

// Service reconciles gateway orders, checkout callbacks and webhooks with
// local subscription state.
type Service struct {
	repo    Repository
	plans   PlanCatalog
	subs    SubscriptionStore
	gateway gateway.Client
	keyID   string
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublicKeyID adds the gateway key id to order responses for the checkout widget.
func WithPublicKeyID(keyID string) Option {
	return func(s *Service) { s.keyID = keyID }
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, plans PlanCatalog, subs SubscriptionStore, gw gateway.Client, opts ...Option) *Service {
	s := &Service{repo: repo, plans: plans, subs: subs, gateway: gw}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service with the GORM webhook log.
func NewServiceFromDB(db *gorm.DB, plans PlanCatalog, subs SubscriptionStore, gw gateway.Client, opts ...Option) *Service {
	return NewService(NewRepository(db), plans, subs, gw, opts...)
}

// CreateOrder prices the plan for the cycle, applies a valid promo and opens a
// gateway order. Gateway failures are surfaced to the caller.
func (s *Service) CreateOrder(ctx context.Context, in OrderRequest) (*OrderResult, error) {
	if in.UserID == 0 {
		return nil, apperror.NoUser()
	}
	cycle, ok := normalizeCycle(in.BillingCycle)
	if !ok {
		return nil, apperror.MissingInput("Billing cycle must be monthly or yearly")
	}
	plan, err := s.plans.GetActive(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, apperror.FreePlan()
	}
	price, ok := plan.Price(cycle)
	if !ok || price <= 0 {
		return nil, apperror.FreePlan()
	}

	now := s.subs.Now()
	amount := price
	promo := ""
	var discount float64
	if code := strings.TrimSpace(in.PromoCode); code != "" {
		offer, err := s.plans.FindValidOffer(plan, code, now)
		if err != nil {
			return nil, err
		}
		promo = offer.Code
		discount = offer.DiscountPercent
		amount = discountedAmount(price, discount)
	}
	if amount <= 0 {
		return nil, apperror.InvalidPromo().With("reason", "discount leaves nothing to charge")
	}

	currency := plan.Pricing.Currency
	receipt := fmt.Sprintf("rcpt_%d_%d", in.UserID, now.UnixMilli())
	order, err := s.gateway.CreateOrder(ctx, gateway.ToMinorUnits(amount), currency, receipt,
		orderNotes(in.UserID, plan.ID, cycle, promo))
	if err != nil {
		log.Errorf("[Billing] create order for user %d plan %d failed: %v", in.UserID, plan.ID, err)
		return nil, apperror.Gateway(err)
	}

	log.Infof("[Billing] order %s created for user %d: plan %s %s, %d %s", order.ID, in.UserID, plan.Tier, cycle, order.Amount, order.Currency)
	return &OrderResult{
		OrderID:         order.ID,
		Amount:          gateway.FromMinorUnits(order.Amount),
		AmountMinor:     order.Amount,
		Currency:        order.Currency,
		PlanID:          plan.ID,
		BillingCycle:    cycle,
		PromoCode:       promo,
		DiscountPercent: discount,
		KeyID:           s.keyID,
	}, nil
}

// VerifyPayment checks the checkout signature and activates the plan. The
// plan, cycle and promo must match the notes of the paid order when the
// gateway reports the payment. It is safe to call again for the same payment,
// and safe to race with the webhook for it.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyRequest) (*models.Subscription, error) {
	orderID := strings.TrimSpace(in.OrderID)
	paymentID := strings.TrimSpace(in.PaymentID)
	signature := strings.TrimSpace(in.Signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, apperror.MissingPaymentDetails()
	}
	if !s.gateway.VerifyPaymentSignature(orderID, paymentID, signature) {
		log.Warnf("[Billing] invalid payment signature for order %s payment %s", orderID, paymentID)
		return nil, apperror.InvalidSignature()
	}
	if in.UserID == 0 {
		return nil, apperror.NoUser()
	}
	cycle, ok := normalizeCycle(in.BillingCycle)
	if !ok {
		return nil, apperror.MissingInput("Billing cycle must be monthly or yearly")
	}
	promo := models.NormalizeOfferCode(in.PromoCode)

	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		log.Warnf("[Billing] fetch payment %s failed, recording list price: %v", paymentID, err)
		payment = nil
	}
	if payment != nil {
		if err := matchOrder(payment, orderID, in.UserID, in.PlanID, cycle, promo); err != nil {
			log.Warnf("[Billing] payment %s rejected for user %d: %v", paymentID, in.UserID, err)
			return nil, apperror.InvalidSignature().With("reason", err.Error())
		}
	}

	plan, err := s.plans.Get(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, apperror.FreePlan()
	}

	sub, err := s.activate(ctx, activation{
		UserID:    in.UserID,
		Plan:      plan,
		Cycle:     cycle,
		OrderID:   orderID,
		PaymentID: paymentID,
		PromoCode: promo,
		Source:    models.PaymentSourceVerify,
	}, payment)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return sub, nil
}

// matchOrder ties a fetched payment to the order the checkout claims to have
// paid: same order id and the user, plan, cycle and promo from its notes.
func matchOrder(p *gateway.Payment, orderID string, userID, planID uint, cycle models.BillingCycle, promo string) error {
	if p.OrderID != "" && p.OrderID != orderID {
		return fmt.Errorf("payment belongs to order %s", p.OrderID)
	}
	notes, ok := parseOrderNotes(p.Notes)
	if !ok {
		return errors.New("payment carries no order notes")
	}
	switch {
	case notes.UserID != userID:
		return errors.New("order was created for another user")
	case notes.PlanID != planID:
		return fmt.Errorf("order was created for plan %d", notes.PlanID)
	case notes.Cycle != cycle:
		return fmt.Errorf("order was created for the %s cycle", notes.Cycle)
	case models.NormalizeOfferCode(notes.PromoCode) != promo:
		return errors.New("promo code differs from the order")
	}
	return nil
}

type activation struct {
	UserID    uint
	Plan      *models.Plan
	Cycle     models.BillingCycle
	OrderID   string
	PaymentID string
	PromoCode string
	Source    string
}

// activate records the captured payment and activates the plan. The amount
// comes from payment when given, falling back to the list price.
func (s *Service) activate(ctx context.Context, a activation, payment *gateway.Payment) (*models.Subscription, error) {
	price, _ := a.Plan.Price(a.Cycle)
	amount, currency := price, a.Plan.Pricing.Currency
	if payment != nil && payment.Amount > 0 {
		amount = payment.Major()
		if payment.Currency != "" {
			currency = payment.Currency
		}
	}

	var discount float64
	promo := strings.TrimSpace(a.PromoCode)
	if promo != "" {
		if offer := a.Plan.FindOffer(promo); offer != nil {
			discount = offer.DiscountPercent
		} else {
			promo = ""
		}
	}

	sub, applied, err := s.subs.ActivatePaid(ctx, subscription.ActivationInput{
		UserID:          a.UserID,
		Plan:            a.Plan,
		Cycle:           a.Cycle,
		OrderID:         a.OrderID,
		PaymentID:       a.PaymentID,
		Amount:          amount,
		Currency:        currency,
		PromoCode:       promo,
		DiscountPercent: discount,
		Source:          a.Source,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		log.Infof("[Billing] payment %s already applied, %s is a no-op", a.PaymentID, a.Source)
	}

	if promo != "" {
		if _, err := s.plans.RedeemOffer(ctx, a.Plan, promo, a.UserID, a.PaymentID); err != nil {
			log.Errorf("[Billing] redeem promo %s for payment %s failed: %v", promo, a.PaymentID, err)
		}
	}
	return sub, nil
}

// HandleWebhook verifies and applies one webhook delivery. A delivery already
// processed under the same event id is acknowledged without being applied
// again. Unknown event types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*WebhookResult, error) {
	if strings.TrimSpace(signature) == "" || !s.gateway.VerifyWebhookSignature(body, signature) {
		log.Warnf("[Billing] rejected webhook with invalid signature (event id %q)", eventID)
		s.metrics.WebhookEvent("unknown", "invalid_signature")
		return nil, apperror.InvalidSignature()
	}

	ev, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		s.metrics.WebhookEvent("unknown", "invalid_payload")
		return nil, apperror.MissingInput("Malformed webhook payload")
	}
	orderID := ""
	if p := ev.Payment(); p != nil {
		orderID = p.OrderID
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.WebhookProviderGateway,
		ProviderEventID: eventID,
		EventType:       ev.Event,
		GatewayOrderID:  orderID,
		PayloadJSON:     string(body),
		SignatureValid:  true,
	})
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("persist webhook event: %w", err))
	}
	if !created && stored.Processed() {
		s.metrics.WebhookEvent(ev.Event, "duplicate")
		return &WebhookResult{Event: ev.Event, Result: stored.Result, Duplicate: true}, nil
	}

	out, procErr := s.dispatch(ctx, ev)
	if procErr != nil {
		out.Result = models.WebhookResultFailed
	}
	if err := s.MarkWebhookProcessed(ctx, stored.ID, out.Result, procErr); err != nil {
		log.Errorf("[Billing] mark webhook event %d processed failed: %v", stored.ID, err)
	}
	s.metrics.WebhookEvent(ev.Event, out.Result)
	if procErr != nil {
		log.Errorf("[Billing] webhook %s for order %s failed: %v", ev.Event, orderID, procErr)
		return nil, apperror.Internal(procErr)
	}
	return out, nil
}

func (s *Service) dispatch(ctx context.Context, ev *gateway.WebhookEvent) (*WebhookResult, error) {
	out := &WebhookResult{Event: ev.Event, Result: models.WebhookResultIgnored}
	p := ev.Payment()
	if p == nil {
		return out, nil
	}
	gp := subscription.GatewayPayment{
		OrderID:   p.OrderID,
		PaymentID: p.ID,
		Amount:    p.Major(),
		Currency:  p.Currency,
		Source:    models.PaymentSourceWebhook,
	}

	var (
		sub *models.Subscription
		err error
	)
	switch ev.Event {
	case gateway.EventPaymentCaptured:
		sub, _, err = s.subs.RecordCapture(ctx, gp)
		if err == nil && sub == nil {
			sub, err = s.activateFromNotes(ctx, p)
		}
	case gateway.EventPaymentFailed:
		sub, _, err = s.subs.MarkPastDue(ctx, gp)
	default:
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if sub == nil {
		log.Infof("[Billing] webhook %s for order %s matched no subscription", ev.Event, p.OrderID)
		return out, nil
	}
	out.Result = models.WebhookResultProcessed
	out.SubscriptionID = sub.ID
	return out, nil
}

// activateFromNotes handles a capture that arrives before the checkout
// callback created a subscription for the order.
func (s *Service) activateFromNotes(ctx context.Context, p *gateway.Payment) (*models.Subscription, error) {
	notes, ok := parseOrderNotes(p.Notes)
	if !ok {
		return nil, nil
	}
	plan, err := s.plans.Get(ctx, notes.PlanID)
	if apperror.HasCode(err, apperror.CodePlanNotFound) {
		log.Warnf("[Billing] order %s references unknown plan %d", p.OrderID, notes.PlanID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.activate(ctx, activation{
		UserID:    notes.UserID,
		Plan:      plan,
		Cycle:     notes.Cycle,
		OrderID:   p.OrderID,
		PaymentID: p.ID,
		PromoCode: notes.PromoCode,
		Source:    models.PaymentSourceWebhook,
	}, p)
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		GatewayOrderID:  strings.TrimSpace(in.GatewayOrderID),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed stores the outcome of an event and an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, result string, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, result, errMsg)
}

// WebhookEventsForOrder returns the delivery log of an order.
func (s *Service) WebhookEventsForOrder(ctx context.Context, orderID string) ([]models.BillingWebhookEvent, error) {
	return s.repo.ListWebhookEventsByOrder(ctx, orderID)
}
