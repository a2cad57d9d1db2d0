// Package catalog serves the plan catalog: active plans for clients, admin
// editing of plans and their offers, and promo code validation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/metrics"
)

const (
	ActivePlansKey = "plans:active"
	DefaultTTL     = 5 * time.Minute
)

// Cache is the subset of the cache client used for the active plan list.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service reads and edits the plan catalog.
type Service struct {
	repo    repository.PlanRepository
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables cache-aside reads of the active plan list.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for promo validity.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a catalog service.
func NewService(repo repository.PlanRepository, opts ...Option) *Service {
	s := &Service{repo: repo, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActive returns active plans in display order, from cache when possible.
// Offers are left out; codes are only checked through ValidatePromo. Cache
// failures fall through to the database.
func (s *Service) ListActive(ctx context.Context) ([]models.Plan, error) {
	if s.cache != nil {
		var cached []models.Plan
		ok, err := s.cache.GetJSON(ctx, ActivePlansKey, &cached)
		switch {
		case err != nil:
			log.Warnf("[Catalog] cache read failed: %v", err)
			s.metrics.CatalogCache("error")
		case ok:
			s.metrics.CatalogCache("hit")
			return cached, nil
		default:
			s.metrics.CatalogCache("miss")
		}
	}

	plans, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, ActivePlansKey, plans, s.ttl); err != nil {
			log.Warnf("[Catalog] cache write failed: %v", err)
		}
	}
	return plans, nil
}

// ListAll returns every plan including inactive ones.
func (s *Service) ListAll(ctx context.Context) ([]models.Plan, error) {
	return s.repo.ListAll(ctx)
}

// Get returns a plan by id, active or not.
func (s *Service) Get(ctx context.Context, id uint) (*models.Plan, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.PlanNotFound()
	}
	return p, err
}

// GetActive returns a plan that can be purchased or assigned.
func (s *Service) GetActive(ctx context.Context, id uint) (*models.Plan, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperror.PlanNotFound()
	}
	return p, nil
}

// GetByTier returns the plan of a tier.
func (s *Service) GetByTier(ctx context.Context, tier models.PlanTier) (*models.Plan, error) {
	p, err := s.repo.GetByTier(ctx, tier)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.PlanNotFound()
	}
	return p, err
}

// FreePlan returns the free tier plan.
func (s *Service) FreePlan(ctx context.Context) (*models.Plan, error) {
	return s.GetByTier(ctx, models.TierFree)
}

// PlanInput is the admin payload for creating or replacing a plan.
type PlanInput struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Tier        string              `json:"tier" validate:"required,oneof=free pro premium enterprise"`
	Description string              `json:"description" validate:"max=2000"`
	Monthly     float64             `json:"monthly" validate:"gte=0"`
	Yearly      float64             `json:"yearly" validate:"gte=0"`
	Currency    string              `json:"currency" validate:"omitempty,len=3"`
	Limits      map[string]int      `json:"limits" validate:"required"`
	Features    models.PlanFeatures `json:"features"`
	IsActive    *bool               `json:"is_active"`
	SortOrder   int                 `json:"sort_order"`
}

func (in PlanInput) validate() error {
	if err := apperror.Validate(in); err != nil {
		return err
	}
	for key, v := range in.Limits {
		if !knownLimitKey(key) {
			return apperror.MissingInput("Unknown limit key " + key).With("field", "limits")
		}
		if v < models.LimitUnlimited {
			return apperror.MissingInput("Limit for " + key + " must be -1 or greater").With("field", "limits")
		}
	}
	return nil
}

func knownLimitKey(key string) bool {
	for _, f := range feature.All() {
		if f.LimitKey() == key {
			return true
		}
	}
	return false
}

func (in PlanInput) apply(p *models.Plan, defaultActive bool) {
	p.Name = strings.TrimSpace(in.Name)
	p.Tier = models.ParsePlanTier(in.Tier)
	p.Description = in.Description
	p.Pricing.Monthly = in.Monthly
	p.Pricing.Yearly = in.Yearly
	p.Pricing.Currency = strings.ToUpper(in.Currency)
	if p.Pricing.Currency == "" {
		p.Pricing.Currency = "INR"
	}
	limits := models.PlanLimits{}
	for _, f := range feature.All() {
		limits[f.LimitKey()] = in.Limits[f.LimitKey()]
	}
	p.SetLimits(limits)
	if in.Features == nil {
		in.Features = models.PlanFeatures{}
	}
	p.SetFeatures(in.Features)
	p.IsActive = defaultActive
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.SortOrder = in.SortOrder
}

// Create adds a plan. Tiers are unique across the catalog.
func (s *Service) Create(ctx context.Context, in PlanInput) (*models.Plan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	tier := models.ParsePlanTier(in.Tier)
	exists, err := s.repo.TierExists(ctx, tier, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Conflict(fmt.Sprintf("A plan with tier %q already exists", tier))
	}

	p := &models.Plan{}
	in.apply(p, true)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return p, nil
}

// Update replaces the fields of an existing plan. Offers are kept.
func (s *Service) Update(ctx context.Context, id uint, in PlanInput) (*models.Plan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tier := models.ParsePlanTier(in.Tier)
	exists, err := s.repo.TierExists(ctx, tier, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Conflict(fmt.Sprintf("A plan with tier %q already exists", tier))
	}

	in.apply(p, p.IsActive)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return p, nil
}

// Delete deactivates and soft-deletes a plan. Subscriptions keep their plan id.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.PlanNotFound()
	}
	if err != nil {
		return err
	}
	s.Invalidate(ctx)
	return nil
}

// OfferInput is the admin payload for a promo offer.
type OfferInput struct {
	Code            string    `json:"code" validate:"required,max=50"`
	Description     string    `json:"description" validate:"max=255"`
	DiscountPercent float64   `json:"discount_percent" validate:"gt=0,lte=100"`
	ValidFrom       time.Time `json:"valid_from" validate:"required"`
	ValidUntil      time.Time `json:"valid_until" validate:"required,gtefield=ValidFrom"`
	MaxRedemptions  int       `json:"max_redemptions" validate:"gte=-1"`
	IsActive        *bool     `json:"is_active"`
}

// AddOffer appends an offer to a plan. Codes are stored upper-case and are
// unique within the plan.
func (s *Service) AddOffer(ctx context.Context, planID uint, in OfferInput) (*models.Offer, error) {
	in.Code = models.NormalizeOfferCode(in.Code)
	if err := apperror.Validate(in); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, planID); err != nil {
		return nil, err
	}
	exists, err := s.repo.OfferCodeExists(ctx, planID, in.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Conflict(fmt.Sprintf("Offer %s already exists on this plan", in.Code))
	}

	offer := &models.Offer{
		PlanID:          planID,
		Code:            in.Code,
		Description:     in.Description,
		DiscountPercent: in.DiscountPercent,
		ValidFrom:       in.ValidFrom.UTC(),
		ValidUntil:      in.ValidUntil.UTC(),
		MaxRedemptions:  in.MaxRedemptions,
		IsActive:        true,
	}
	if in.IsActive != nil {
		offer.IsActive = *in.IsActive
	}
	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return offer, nil
}

// RemoveOffer deletes an offer from a plan.
func (s *Service) RemoveOffer(ctx context.Context, planID uint, code string) error {
	if _, err := s.Get(ctx, planID); err != nil {
		return err
	}
	n, err := s.repo.DeleteOffer(ctx, planID, models.NormalizeOfferCode(code))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("Offer")
	}
	s.Invalidate(ctx)
	return nil
}

// FindValidOffer returns the plan offer matching code if it is active, inside
// its validity window and below its redemption cap.
func (s *Service) FindValidOffer(plan *models.Plan, code string, now time.Time) (*models.Offer, error) {
	offer := plan.FindOffer(code)
	if offer == nil || !offer.IsRedeemableAt(now) {
		return nil, apperror.InvalidPromo()
	}
	return offer, nil
}

// ValidatePromo checks a promo code against an active plan at the current time.
func (s *Service) ValidatePromo(ctx context.Context, planID uint, code string) (*models.Plan, *models.Offer, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil, apperror.MissingInput("Promo code is required")
	}
	plan, err := s.GetActive(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	offer, err := s.FindValidOffer(plan, code, s.now())
	if err != nil {
		return nil, nil, err
	}
	return plan, offer, nil
}

// RedeemOffer counts one redemption of the plan offer matching code for a
// payment. The cap is not re-checked here. It returns false when the code does
// not match an offer or the payment already redeemed it.
func (s *Service) RedeemOffer(ctx context.Context, plan *models.Plan, code string, userID uint, paymentID string) (bool, error) {
	offer := plan.FindOffer(code)
	if offer == nil {
		return false, nil
	}
	redeemed, err := s.repo.RedeemOffer(ctx, offer.ID, userID, paymentID)
	if err != nil {
		return false, err
	}
	if redeemed {
		offer.CurrentRedemptions++
		s.Invalidate(ctx)
	}
	return redeemed, nil
}

// Invalidate drops the cached active plan list.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ActivePlansKey); err != nil {
		log.Warnf("[Catalog] cache invalidation failed: %v", err)
	}
}
