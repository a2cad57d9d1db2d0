package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanTier is the pricing level of a catalog plan.
type PlanTier string

const (
	TierFree       PlanTier = "free"
	TierPro        PlanTier = "pro"
	TierPremium    PlanTier = "premium"
	TierEnterprise PlanTier = "enterprise"
)

// Valid reports whether the tier is one of the known catalog tiers.
func (t PlanTier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierPremium, TierEnterprise:
		return true
	default:
		return false
	}
}

// ParsePlanTier normalizes a tier name. Unknown names return an empty tier.
func ParsePlanTier(s string) PlanTier {
	t := PlanTier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return ""
	}
	return t
}

// Quota sentinels used in PlanLimits.
const (
	LimitUnlimited   = -1
	LimitUnavailable = 0
)

// PlanLimits maps a limit key (e.g. "lyricsPerMonth") to a monthly quota.
// -1 means unlimited, 0 means the feature is not part of the plan.
type PlanLimits map[string]int

// PlanFeatures holds cosmetic and capability flags shown to clients.
type PlanFeatures map[string]any

// Pricing holds list prices in major currency units.
type Pricing struct {
	Monthly  float64 `gorm:"type:decimal(12,2);not null;default:0" json:"monthly"`
	Yearly   float64 `gorm:"type:decimal(12,2);not null;default:0" json:"yearly"`
	Currency string  `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
}

// Plan is a subscription plan in the catalog.
type Plan struct {
	ID          uint                             `gorm:"primaryKey" json:"id"`
	Name        string                           `gorm:"type:varchar(100);not null" json:"name"`
	Tier        PlanTier                         `gorm:"type:varchar(20);not null;uniqueIndex" json:"tier"`
	Description string                           `gorm:"type:text" json:"description"`
	Pricing     Pricing                          `gorm:"embedded;embeddedPrefix:price_" json:"pricing"`
	Limits      datatypes.JSONType[PlanLimits]   `gorm:"type:json" json:"limits"`
	Features    datatypes.JSONType[PlanFeatures] `gorm:"type:json" json:"features"`
	Offers      []Offer                          `gorm:"foreignKey:PlanID" json:"offers,omitempty"`
	IsActive    bool                             `gorm:"not null;index" json:"is_active"`
	SortOrder   int                              `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time                        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt                   `gorm:"index" json:"-"`
}

// LimitsMap returns the plan limits, never nil.
func (p *Plan) LimitsMap() PlanLimits {
	if p == nil {
		return PlanLimits{}
	}
	l := p.Limits.Data()
	if l == nil {
		return PlanLimits{}
	}
	return l
}

// SetLimits replaces the plan limits.
func (p *Plan) SetLimits(l PlanLimits) {
	p.Limits = datatypes.NewJSONType(l)
}

// SetFeatures replaces the plan feature flags.
func (p *Plan) SetFeatures(f PlanFeatures) {
	p.Features = datatypes.NewJSONType(f)
}

// IsFree reports whether the plan belongs to the free tier.
func (p *Plan) IsFree() bool {
	return p != nil && p.Tier == TierFree
}

// Price returns the list price for the billing cycle.
func (p *Plan) Price(cycle BillingCycle) (float64, bool) {
	switch cycle {
	case BillingCycleMonthly:
		return p.Pricing.Monthly, true
	case BillingCycleYearly:
		return p.Pricing.Yearly, true
	default:
		return 0, false
	}
}

// FindOffer returns the offer with the given code (case-insensitive), or nil.
func (p *Plan) FindOffer(code string) *Offer {
	c := NormalizeOfferCode(code)
	if c == "" {
		return nil
	}
	for i := range p.Offers {
		if p.Offers[i].Code == c {
			return &p.Offers[i]
		}
	}
	return nil
}
