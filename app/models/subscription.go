package models

import (
	"time"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
)

// Entitling reports whether the status allows metered generation.
func (s SubscriptionStatus) Entitling() bool {
	return s == SubscriptionActive || s == SubscriptionTrial
}

// BillingCycle is the payment interval of a subscription.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
	BillingCycleNone    BillingCycle = "none"
)

// Usage holds per-period generation counters.
type Usage struct {
	LyricsGenerated int       `gorm:"not null;default:0" json:"lyrics_generated"`
	MusicGenerated  int       `gorm:"not null;default:0" json:"music_generated"`
	VideoGenerated  int       `gorm:"not null;default:0" json:"video_generated"`
	VoiceGenerated  int       `gorm:"not null;default:0" json:"voice_generated"`
	PeriodStart     time.Time `gorm:"type:datetime" json:"period_start"`
	PeriodEnd       time.Time `gorm:"type:datetime" json:"period_end"`
}

// Count returns the counter for f. Unknown features count as zero.
func (u *Usage) Count(f feature.Type) int {
	switch f {
	case feature.Lyrics:
		return u.LyricsGenerated
	case feature.Music:
		return u.MusicGenerated
	case feature.Video:
		return u.VideoGenerated
	case feature.Voice:
		return u.VoiceGenerated
	default:
		return 0
	}
}

// Increment adds one to the counter for f and reports whether a counter changed.
func (u *Usage) Increment(f feature.Type) bool {
	switch f {
	case feature.Lyrics:
		u.LyricsGenerated++
	case feature.Music:
		u.MusicGenerated++
	case feature.Video:
		u.VideoGenerated++
	case feature.Voice:
		u.VoiceGenerated++
	default:
		return false
	}
	return true
}

// CounterColumn is the database column holding the counter for f.
func CounterColumn(f feature.Type) string {
	switch f {
	case feature.Lyrics:
		return "usage_lyrics_generated"
	case feature.Music:
		return "usage_music_generated"
	case feature.Video:
		return "usage_video_generated"
	case feature.Voice:
		return "usage_voice_generated"
	default:
		return ""
	}
}

// AdminOverride marks a plan assigned manually by an administrator.
type AdminOverride struct {
	IsOverridden   bool       `gorm:"not null;default:false" json:"is_overridden"`
	OverriddenBy   uint       `gorm:"not null;default:0" json:"overridden_by"`
	Reason         string     `gorm:"type:varchar(500);default:''" json:"reason"`
	PreviousPlanID *uint      `gorm:"default:null" json:"previous_plan_id,omitempty"`
	OverriddenAt   *time.Time `gorm:"type:timestamp;default:null" json:"overridden_at,omitempty"`
}

// AppliedPromo is the promo snapshot taken when a paid plan was activated.
type AppliedPromo struct {
	Code            string  `gorm:"type:varchar(50);default:''" json:"code"`
	DiscountPercent float64 `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percent"`
}

// Subscription is the single subscription record of a user.
type Subscription struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	UserID           uint               `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID           uint               `gorm:"not null;index" json:"plan_id"`
	Plan             *Plan              `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status           SubscriptionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	BillingCycle     BillingCycle       `gorm:"type:varchar(16);not null;default:'none'" json:"billing_cycle"`
	StartDate        time.Time          `gorm:"type:datetime;not null" json:"start_date"`
	EndDate          *time.Time         `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	RenewalDate      *time.Time         `gorm:"type:timestamp;default:null" json:"renewal_date,omitempty"`
	GatewayOrderID   string             `gorm:"type:varchar(191);default:'';index" json:"gateway_order_id"`
	GatewayPaymentID string             `gorm:"type:varchar(191);default:''" json:"gateway_payment_id"`
	Usage            Usage              `gorm:"embedded;embeddedPrefix:usage_" json:"usage"`
	AdminOverride    AdminOverride      `gorm:"embedded;embeddedPrefix:override_" json:"admin_override"`
	AppliedPromo     AppliedPromo       `gorm:"embedded;embeddedPrefix:promo_" json:"applied_promo"`
	PaymentHistory   []PaymentRecord    `gorm:"foreignKey:SubscriptionID" json:"payment_history,omitempty"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResetUsage zeroes every counter and starts a new period.
func (s *Subscription) ResetUsage(start, end time.Time) {
	s.Usage = Usage{PeriodStart: start, PeriodEnd: end}
}

// HasPayment reports whether the history already holds an entry for the
// payment id with the given status.
func (s *Subscription) HasPayment(paymentID string, status PaymentStatus) bool {
	for _, p := range s.PaymentHistory {
		if p.GatewayPaymentID == paymentID && p.Status == status {
			return true
		}
	}
	return false
}
