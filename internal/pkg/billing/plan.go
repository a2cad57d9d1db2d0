package billing

import (
	"math"
	"strconv"
	"strings"

	"github.com/ManuelReschke/SoundSmith/app/models"
)

// Order note keys read back when a webhook arrives for an unknown order.
const (
	noteUserID       = "user_id"
	notePlanID       = "plan_id"
	noteBillingCycle = "billing_cycle"
	notePromoCode    = "promo_code"
)

// normalizeCycle accepts only the purchasable billing cycles.
func normalizeCycle(cycle string) (models.BillingCycle, bool) {
	switch models.BillingCycle(strings.ToLower(strings.TrimSpace(cycle))) {
	case models.BillingCycleMonthly:
		return models.BillingCycleMonthly, true
	case models.BillingCycleYearly:
		return models.BillingCycleYearly, true
	default:
		return "", false
	}
}

// discountedAmount applies a percentage discount and rounds to whole units.
func discountedAmount(amount, percent float64) float64 {
	if percent <= 0 {
		return amount
	}
	return math.Round(amount * (1 - percent/100))
}

func orderNotes(userID, planID uint, cycle models.BillingCycle, promo string) map[string]string {
	return map[string]string{
		noteUserID:       strconv.FormatUint(uint64(userID), 10),
		notePlanID:       strconv.FormatUint(uint64(planID), 10),
		noteBillingCycle: string(cycle),
		notePromoCode:    promo,
	}
}

type parsedNotes struct {
	UserID    uint
	PlanID    uint
	Cycle     models.BillingCycle
	PromoCode string
}

func parseOrderNotes(notes map[string]string) (parsedNotes, bool) {
	userID, err := strconv.ParseUint(strings.TrimSpace(notes[noteUserID]), 10, 64)
	if err != nil || userID == 0 {
		return parsedNotes{}, false
	}
	planID, err := strconv.ParseUint(strings.TrimSpace(notes[notePlanID]), 10, 64)
	if err != nil || planID == 0 {
		return parsedNotes{}, false
	}
	cycle, ok := normalizeCycle(notes[noteBillingCycle])
	if !ok {
		return parsedNotes{}, false
	}
	return parsedNotes{
		UserID:    uint(userID),
		PlanID:    uint(planID),
		Cycle:     cycle,
		PromoCode: strings.TrimSpace(notes[notePromoCode]),
	}, true
}
