package subscription

import (
	"context"
	"time"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/quota"
)

// UsageSummary is the caller-facing view of the current usage period.
type UsageSummary struct {
	Tier        models.PlanTier           `json:"tier"`
	Status      models.SubscriptionStatus `json:"status"`
	PeriodStart time.Time                 `json:"period_start"`
	PeriodEnd   time.Time                 `json:"period_end"`
	Features    map[string]quota.Decision `json:"features"`
}

// Summarize evaluates every feature quota of sub.
func Summarize(sub *models.Subscription) UsageSummary {
	var tier models.PlanTier
	if sub.Plan != nil {
		tier = sub.Plan.Tier
	}
	return UsageSummary{
		Tier:        tier,
		Status:      sub.Status,
		PeriodStart: sub.Usage.PeriodStart,
		PeriodEnd:   sub.Usage.PeriodEnd,
		Features:    quota.Snapshot(sub.Usage, sub.Plan.LimitsMap()),
	}
}

// Analytics aggregates subscriber counts and captured revenue.
func (s *Store) Analytics(ctx context.Context) (*models.SubscriptionAnalytics, error) {
	out := &models.SubscriptionAnalytics{}

	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out.ByStatus = byStatus
	for _, row := range byStatus {
		out.TotalSubscriptions += row.Count
		if row.Status.Entitling() {
			out.ActiveSubscriptions += row.Count
		}
	}

	byTier, err := s.repo.CountByTier(ctx)
	if err != nil {
		return nil, err
	}
	out.ByTier = byTier
	for _, row := range byTier {
		if row.Tier != models.TierFree {
			out.PaidSubscriptions += row.Count
		}
	}

	if out.Revenue, err = s.repo.RevenueByCurrency(ctx); err != nil {
		return nil, err
	}

	now := s.Now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -29)
	created, err := s.repo.CreatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	out.NewLast30Days = bucketByDay(created)
	return out, nil
}

func bucketByDay(times []time.Time) []models.DailyStats {
	out := []models.DailyStats{}
	for _, t := range times {
		day := t.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Count++
			continue
		}
		out = append(out, models.DailyStats{Date: day, Count: 1})
	}
	return out
}
