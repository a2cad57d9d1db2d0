package models

// DailyStats is a count for a single day.
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TierCount is the number of subscriptions on one plan tier.
type TierCount struct {
	Tier  PlanTier `json:"tier"`
	Count int64    `json:"count"`
}

// StatusCount is the number of subscriptions in one status.
type StatusCount struct {
	Status SubscriptionStatus `json:"status"`
	Count  int64              `json:"count"`
}

// RevenueTotal sums captured payments in one currency.
type RevenueTotal struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	Payments int64   `json:"payments"`
}

// SubscriptionAnalytics is the admin dashboard summary.
type SubscriptionAnalytics struct {
	TotalSubscriptions  int64          `json:"total_subscriptions"`
	ActiveSubscriptions int64          `json:"active_subscriptions"`
	PaidSubscriptions   int64          `json:"paid_subscriptions"`
	ByTier              []TierCount    `json:"by_tier"`
	ByStatus            []StatusCount  `json:"by_status"`
	Revenue             []RevenueTotal `json:"revenue"`
	NewLast30Days       []DailyStats   `json:"new_last_30_days"`
}
