package models

import (
	"strings"
	"time"
)

// Offer is a promo code attached to one plan.
type Offer struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	PlanID             uint      `gorm:"not null;index:ux_plan_offers_plan_code,unique,priority:1" json:"plan_id"`
	Code               string    `gorm:"type:varchar(50);not null;index:ux_plan_offers_plan_code,unique,priority:2" json:"code"`
	Description        string    `gorm:"type:varchar(255);default:''" json:"description"`
	DiscountPercent    float64   `gorm:"type:decimal(5,2);not null" json:"discount_percent"`
	ValidFrom          time.Time `gorm:"type:datetime;not null" json:"valid_from"`
	ValidUntil         time.Time `gorm:"type:datetime;not null" json:"valid_until"`
	MaxRedemptions     int       `gorm:"not null" json:"max_redemptions"`
	CurrentRedemptions int       `gorm:"not null;default:0" json:"current_redemptions"`
	IsActive           bool      `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Offer) TableName() string {
	return "plan_offers"
}

// NormalizeOfferCode is the stored form of a promo code.
func NormalizeOfferCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HasRemainingRedemptions reports whether the redemption cap still allows use.
func (o *Offer) HasRemainingRedemptions() bool {
	return o.MaxRedemptions == LimitUnlimited || o.CurrentRedemptions < o.MaxRedemptions
}

// IsRedeemableAt reports whether the offer can be applied at the given instant.
// The validity window is inclusive on both ends.
func (o *Offer) IsRedeemableAt(now time.Time) bool {
	if o == nil || !o.IsActive {
		return false
	}
	if now.Before(o.ValidFrom) || now.After(o.ValidUntil) {
		return false
	}
	return o.HasRemainingRedemptions()
}

// OfferRedemption records that a payment consumed an offer. PaymentID is unique
// so one payment can redeem at most once.
type OfferRedemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OfferID   uint      `gorm:"not null;index" json:"offer_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PaymentID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"payment_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
