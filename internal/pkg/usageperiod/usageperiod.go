// Package usageperiod decides when a usage window has elapsed and computes the
// next one. Windows are one calendar month long.
//
// Month arithmetic clamps to the last day of the target month, so a period
// starting on January 31st ends on the last day of February. All computation
// happens in UTC and keeps the time of day.
package usageperiod

import (
	"time"

	"github.com/ManuelReschke/SoundSmith/app/models"
)

// AddMonths advances t by n calendar months, clamping the day of month.
func AddMonths(t time.Time, n int) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// AddMonth advances t by one calendar month.
func AddMonth(t time.Time) time.Time {
	return AddMonths(t, 1)
}

// AddYear advances t by twelve calendar months. February 29th lands on February 28th.
func AddYear(t time.Time) time.Time {
	return AddMonths(t, 12)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Window returns the period that starts at now.
func Window(now time.Time) (start, end time.Time) {
	start = now.UTC()
	return start, AddMonth(start)
}

// NeedsReset reports whether now is at or past the end of the usage period.
// An unset period end always needs a reset.
func NeedsReset(u models.Usage, now time.Time) bool {
	return u.PeriodEnd.IsZero() || !now.Before(u.PeriodEnd)
}

// Rollover resets every counter and starts a new period at now when the
// current one has elapsed. It reports whether a reset happened so the caller
// knows whether to persist.
func Rollover(u *models.Usage, now time.Time) bool {
	if u == nil || !NeedsReset(*u, now) {
		return false
	}
	start, end := Window(now)
	*u = models.Usage{PeriodStart: start, PeriodEnd: end}
	return true
}

// CycleEnd is the subscription end date for a paid billing cycle starting at from.
func CycleEnd(from time.Time, cycle models.BillingCycle) (time.Time, bool) {
	switch cycle {
	case models.BillingCycleMonthly:
		return AddMonth(from), true
	case models.BillingCycleYearly:
		return AddYear(from), true
	default:
		return time.Time{}, false
	}
}
