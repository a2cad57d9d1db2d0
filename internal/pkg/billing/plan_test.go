package billing

import (
	"testing"

	"github.com/ManuelReschke/SoundSmith/app/models"
)

func TestNormalizeCycle(t *testing.T) {
	tests := []struct {
		in   string
		want models.BillingCycle
		ok   bool
	}{
		{in: "monthly", want: models.BillingCycleMonthly, ok: true},
		{in: " YEARLY ", want: models.BillingCycleYearly, ok: true},
		{in: "none", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := normalizeCycle(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("normalizeCycle(%q) = %q,%v, want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDiscountedAmount(t *testing.T) {
	if got := discountedAmount(1000, 20); got != 800 {
		t.Fatalf("expected 800, got %v", got)
	}
	if got := discountedAmount(999, 15); got != 849 {
		t.Fatalf("expected 849, got %v", got)
	}
	if got := discountedAmount(1000, 0); got != 1000 {
		t.Fatalf("expected undiscounted amount, got %v", got)
	}
}

func TestOrderNotesRoundTrip(t *testing.T) {
	notes := orderNotes(7, 3, models.BillingCycleYearly, "SAVE20")
	parsed, ok := parseOrderNotes(notes)
	if !ok {
		t.Fatalf("expected notes to parse")
	}
	if parsed.UserID != 7 || parsed.PlanID != 3 || parsed.Cycle != models.BillingCycleYearly || parsed.PromoCode != "SAVE20" {
		t.Fatalf("unexpected parsed notes: %+v", parsed)
	}

	delete(notes, notePlanID)
	if _, ok := parseOrderNotes(notes); ok {
		t.Fatalf("expected notes without plan id to be rejected")
	}
}
