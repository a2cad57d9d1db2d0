// Package subscription owns the one-per-user subscription record: plan
// assignment, status, billing dates, usage counters and payment history.
//
// Period rollover and end-date expiry are resolved when a subscription is
// read. There is no background scheduler.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/metrics"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/usageperiod"
)

// PlanSource resolves the plan used for downgrades and first registrations.
type PlanSource interface {
	FreePlan(ctx context.Context) (*models.Plan, error)
}

// Store reads and mutates subscriptions.
type Store struct {
	repo    repository.SubscriptionRepository
	plans   PlanSource
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a subscription store.
func NewStore(repo repository.SubscriptionRepository, plans PlanSource, opts ...Option) *Store {
	s := &Store{repo: repo, plans: plans, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// GetForUser returns the user's subscription, or nil when there is none.
// An active subscription past its end date is moved to the free plan with
// status expired, and an elapsed usage period is rolled over. Either change
// is persisted before returning.
func (s *Store) GetForUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription for user %d: %w", userID, err)
	}

	now := s.Now()
	changed := s.expireIfEnded(ctx, sub, now)
	if usageperiod.Rollover(&sub.Usage, now) {
		changed = true
	}
	if changed {
		if err := s.repo.Save(ctx, sub); err != nil {
			return nil, fmt.Errorf("persist subscription %d: %w", sub.ID, err)
		}
	}
	return sub, nil
}

func (s *Store) expireIfEnded(ctx context.Context, sub *models.Subscription, now time.Time) bool {
	if sub.Status != models.SubscriptionActive || sub.EndDate == nil || now.Before(*sub.EndDate) {
		return false
	}

	free, err := s.plans.FreePlan(ctx)
	if err != nil {
		log.Warnf("[Subscription] free plan unavailable while expiring subscription %d: %v", sub.ID, err)
	} else {
		sub.PlanID = free.ID
		sub.Plan = free
	}
	sub.Status = models.SubscriptionExpired
	sub.BillingCycle = models.BillingCycleNone
	sub.RenewalDate = nil
	start, end := usageperiod.Window(now)
	sub.ResetUsage(start, end)
	log.Infof("[Subscription] subscription %d of user %d expired, moved to free plan", sub.ID, sub.UserID)
	return true
}

// CheckAndResetUsage rolls the usage period of sub over if it has elapsed and
// persists the reset. It reports whether a reset happened.
func (s *Store) CheckAndResetUsage(ctx context.Context, sub *models.Subscription) (bool, error) {
	if !usageperiod.Rollover(&sub.Usage, s.Now()) {
		return false, nil
	}
	if err := s.repo.Save(ctx, sub); err != nil {
		return true, fmt.Errorf("persist usage reset for subscription %d: %w", sub.ID, err)
	}
	return true, nil
}

// IncrementUsage adds one to the counter of f. Unknown features are ignored
// without touching the database.
func (s *Store) IncrementUsage(ctx context.Context, sub *models.Subscription, f feature.Type) error {
	column := models.CounterColumn(f)
	if column == "" {
		return nil
	}
	if err := s.repo.IncrementUsage(ctx, sub.ID, column); err != nil {
		return fmt.Errorf("increment %s for subscription %d: %w", f, sub.ID, err)
	}
	sub.Usage.Increment(f)
	return nil
}

// EnsureFreeSubscription returns the user's subscription, creating one on the
// free plan when none exists. An expired or cancelled subscription is put
// back on the free plan. The boolean reports whether the free plan was granted.
func (s *Store) EnsureFreeSubscription(ctx context.Context, userID uint) (*models.Subscription, bool, error) {
	existing, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && existing.Status != models.SubscriptionExpired && existing.Status != models.SubscriptionCancelled {
		return existing, false, nil
	}

	free, err := s.plans.FreePlan(ctx)
	if err != nil {
		return nil, false, err
	}
	now := s.Now()
	if existing != nil {
		return s.restartOnFree(ctx, existing, free, now)
	}
	sub := &models.Subscription{
		UserID:       userID,
		PlanID:       free.ID,
		Status:       models.SubscriptionActive,
		BillingCycle: models.BillingCycleNone,
		StartDate:    now,
	}
	start, end := usageperiod.Window(now)
	sub.ResetUsage(start, end)

	if err := s.repo.Create(ctx, sub); err != nil {
		// A concurrent registration may have won the unique user index.
		if again, getErr := s.repo.GetByUserID(ctx, userID); getErr == nil {
			return again, false, nil
		}
		return nil, false, fmt.Errorf("create free subscription for user %d: %w", userID, err)
	}
	sub.Plan = free
	return sub, true, nil
}

func (s *Store) restartOnFree(ctx context.Context, sub *models.Subscription, free *models.Plan, now time.Time) (*models.Subscription, bool, error) {
	previous := sub.Status
	sub.PlanID = free.ID
	sub.Plan = free
	sub.Status = models.SubscriptionActive
	sub.BillingCycle = models.BillingCycleNone
	sub.StartDate = now
	sub.EndDate = nil
	sub.RenewalDate = nil
	sub.AppliedPromo = models.AppliedPromo{}
	sub.ResetUsage(usageperiod.Window(now))
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, false, fmt.Errorf("restart subscription %d on free plan: %w", sub.ID, err)
	}
	log.Infof("[Subscription] user %d moved from %s to the free plan", sub.UserID, previous)
	return sub, true, nil
}

// ActivationInput describes a captured payment for a paid plan.
type ActivationInput struct {
	UserID          uint
	Plan            *models.Plan
	Cycle           models.BillingCycle
	OrderID         string
	PaymentID       string
	Amount          float64
	Currency        string
	PromoCode       string
	DiscountPercent float64
	Source          string
}

// ActivatePaid puts the user on a paid plan for one billing cycle starting
// now, resets usage and appends a captured payment. It is idempotent per
// payment id: when the payment was already recorded nothing changes and the
// boolean is false.
func (s *Store) ActivatePaid(ctx context.Context, in ActivationInput) (*models.Subscription, bool, error) {
	if in.Plan == nil || in.UserID == 0 || in.PaymentID == "" {
		return nil, false, errors.New("activation requires user, plan and payment id")
	}
	now := s.Now()
	end, ok := usageperiod.CycleEnd(now, in.Cycle)
	if !ok {
		return nil, false, apperror.MissingInput("Billing cycle must be monthly or yearly")
	}

	sub, applied, err := s.activatePaid(ctx, in, now, end)
	if errors.Is(err, errCreateFailed) {
		// A concurrent activation may have won the unique user index.
		if _, getErr := s.repo.GetByUserID(ctx, in.UserID); getErr == nil {
			sub, applied, err = s.activatePaid(ctx, in, now, end)
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("activate plan %d for user %d: %w", in.Plan.ID, in.UserID, err)
	}
	if applied {
		s.metrics.Payment(in.Source, string(models.PaymentCaptured))
		log.Infof("[Subscription] user %d activated plan %s (%s) via %s, payment %s", in.UserID, in.Plan.Tier, in.Cycle, in.Source, in.PaymentID)
	}
	return sub, applied, nil
}

var errCreateFailed = errors.New("create subscription")

func (s *Store) activatePaid(ctx context.Context, in ActivationInput, now, end time.Time) (*models.Subscription, bool, error) {
	var sub *models.Subscription
	applied := false
	err := s.repo.Transaction(ctx, func(repo repository.SubscriptionRepository) error {
		current, err := repo.GetByUserID(ctx, in.UserID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			current = &models.Subscription{UserID: in.UserID, PlanID: in.Plan.ID, Status: models.SubscriptionActive,
				BillingCycle: in.Cycle, StartDate: now}
			current.ResetUsage(usageperiod.Window(now))
			if err := repo.Create(ctx, current); err != nil {
				return fmt.Errorf("%w: %w", errCreateFailed, err)
			}
		case err != nil:
			return err
		}
		sub = current
		if current.HasPayment(in.PaymentID, models.PaymentCaptured) {
			return nil
		}

		record := &models.PaymentRecord{
			SubscriptionID:   current.ID,
			GatewayPaymentID: in.PaymentID,
			GatewayOrderID:   in.OrderID,
			Amount:           in.Amount,
			Currency:         in.Currency,
			Status:           models.PaymentCaptured,
			Source:           in.Source,
			PaidAt:           now,
		}
		created, err := repo.AppendPayment(ctx, record)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		applied = true

		current.PlanID = in.Plan.ID
		current.Plan = in.Plan
		current.Status = models.SubscriptionActive
		current.BillingCycle = in.Cycle
		current.StartDate = now
		current.EndDate = &end
		current.RenewalDate = &end
		current.GatewayOrderID = in.OrderID
		current.GatewayPaymentID = in.PaymentID
		current.AppliedPromo = models.AppliedPromo{}
		if in.PromoCode != "" {
			current.AppliedPromo = models.AppliedPromo{Code: models.NormalizeOfferCode(in.PromoCode), DiscountPercent: in.DiscountPercent}
		}
		current.AdminOverride = models.AdminOverride{}
		current.ResetUsage(usageperiod.Window(now))
		current.PaymentHistory = append(current.PaymentHistory, *record)
		return repo.Save(ctx, current)
	})
	if err != nil {
		return nil, false, err
	}
	return sub, applied, nil
}

// GatewayPayment is a payment reported for an existing order.
type GatewayPayment struct {
	OrderID   string
	PaymentID string
	Amount    float64
	Currency  string
	Source    string
}

// RecordCapture applies a captured payment to the subscription correlated with
// the order: payment id set, status active, captured entry appended. It
// returns nil when no subscription matches the order. A payment that is already
// in the history leaves the subscription untouched.
func (s *Store) RecordCapture(ctx context.Context, p GatewayPayment) (*models.Subscription, bool, error) {
	return s.applyOrderPayment(ctx, p, models.PaymentCaptured, func(sub *models.Subscription) {
		sub.GatewayPaymentID = p.PaymentID
		sub.Status = models.SubscriptionActive
	})
}

// MarkPastDue applies a failed payment to the subscription correlated with the
// order: status past_due and a failed entry appended. The plan is unchanged.
func (s *Store) MarkPastDue(ctx context.Context, p GatewayPayment) (*models.Subscription, bool, error) {
	return s.applyOrderPayment(ctx, p, models.PaymentFailed, func(sub *models.Subscription) {
		sub.Status = models.SubscriptionPastDue
	})
}

func (s *Store) applyOrderPayment(ctx context.Context, p GatewayPayment, status models.PaymentStatus, mutate func(*models.Subscription)) (*models.Subscription, bool, error) {
	if p.OrderID == "" || p.PaymentID == "" {
		return nil, false, apperror.MissingPaymentDetails()
	}
	var sub *models.Subscription
	applied := false
	err := s.repo.Transaction(ctx, func(repo repository.SubscriptionRepository) error {
		current, err := repo.GetByOrderID(ctx, p.OrderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		sub = current
		if current.HasPayment(p.PaymentID, status) {
			return nil
		}

		record := &models.PaymentRecord{
			SubscriptionID:   current.ID,
			GatewayPaymentID: p.PaymentID,
			GatewayOrderID:   p.OrderID,
			Amount:           p.Amount,
			Currency:         p.Currency,
			Status:           status,
			Source:           p.Source,
			PaidAt:           s.Now(),
		}
		created, err := repo.AppendPayment(ctx, record)
		if err != nil || !created {
			return err
		}
		applied = true
		mutate(current)
		current.PaymentHistory = append(current.PaymentHistory, *record)
		return repo.Save(ctx, current)
	})
	if err != nil {
		return nil, false, fmt.Errorf("apply %s payment for order %s: %w", status, p.OrderID, err)
	}
	if applied {
		s.metrics.Payment(p.Source, string(status))
	}
	return sub, applied, nil
}

// OverrideInput assigns a plan to a user without payment.
type OverrideInput struct {
	UserID  uint
	Plan    *models.Plan
	AdminID uint
	Reason  string
}

// ApplyAdminOverride assigns a plan directly, regardless of the current status.
// Usage is reset, the billing cycle becomes none and the previous plan is kept
// in the override marker.
func (s *Store) ApplyAdminOverride(ctx context.Context, in OverrideInput) (*models.Subscription, error) {
	if in.Plan == nil || in.UserID == 0 {
		return nil, apperror.MissingInput("User and plan are required")
	}
	now := s.Now()

	sub, err := s.repo.GetByUserID(ctx, in.UserID)
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return nil, fmt.Errorf("load subscription for user %d: %w", in.UserID, err)
	}

	var previous *uint
	if isNew {
		sub = &models.Subscription{UserID: in.UserID, StartDate: now}
	} else {
		prev := sub.PlanID
		previous = &prev
	}

	sub.PlanID = in.Plan.ID
	sub.Plan = in.Plan
	sub.Status = models.SubscriptionActive
	sub.BillingCycle = models.BillingCycleNone
	sub.EndDate = nil
	sub.RenewalDate = nil
	sub.ResetUsage(usageperiod.Window(now))
	sub.AdminOverride = models.AdminOverride{
		IsOverridden:   true,
		OverriddenBy:   in.AdminID,
		Reason:         in.Reason,
		PreviousPlanID: previous,
		OverriddenAt:   &now,
	}

	if isNew {
		err = s.repo.Create(ctx, sub)
	} else {
		err = s.repo.Save(ctx, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("override subscription for user %d: %w", in.UserID, err)
	}
	log.Infof("[Subscription] admin %d assigned plan %s to user %d", in.AdminID, in.Plan.Tier, in.UserID)
	return sub, nil
}

// Cancel stops a paid subscription. Free-tier subscriptions cannot be cancelled.
func (s *Store) Cancel(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.Plan == nil {
		return nil, apperror.NoSubscription()
	}
	if sub.Plan.IsFree() {
		return nil, apperror.CannotCancelFree()
	}
	if sub.Status == models.SubscriptionCancelled {
		return sub, nil
	}

	sub.Status = models.SubscriptionCancelled
	sub.RenewalDate = nil
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("cancel subscription %d: %w", sub.ID, err)
	}
	log.Infof("[Subscription] user %d cancelled plan %s", userID, sub.Plan.Tier)
	return sub, nil
}

// List returns a page of subscriptions for administrators.
func (s *Store) List(ctx context.Context, filter repository.SubscriptionFilter) ([]models.Subscription, int64, error) {
	return s.repo.List(ctx, filter)
}
