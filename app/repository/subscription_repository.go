package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Plan").
		Preload("Plan.Offers").
		Preload("PaymentHistory", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("paid_at ASC, id ASC")
		})
}

// GetByUserID retrieves the subscription of a user with its plan and payment history.
// A soft-deleted plan is not loaded and leaves Plan nil.
func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.withRelations(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByOrderID retrieves the subscription correlated with a gateway order
func (r *subscriptionRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Subscription, error) {
	if orderID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var sub models.Subscription
	if err := r.withRelations(ctx).Where("gateway_order_id = ?", orderID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create inserts a subscription without touching its associations
func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(sub).Error
}

// Save writes every subscription column. Payment history is only ever appended
// through AppendPayment.
func (r *subscriptionRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(sub).Error
}

// IncrementUsage adds one to a usage counter column in a single statement
func (r *subscriptionRepository) IncrementUsage(ctx context.Context, id uint, column string) error {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendPayment adds a payment history entry. It returns false when an entry
// with the same gateway payment id and status already exists.
func (r *subscriptionRepository) AppendPayment(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway_payment_id"}, {Name: "status"}},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns a page of subscriptions and the total matching the filter
func (r *subscriptionRepository) List(ctx context.Context, filter SubscriptionFilter) ([]models.Subscription, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Subscription{})
	if filter.Status != "" {
		q = q.Where("subscriptions.status = ?", filter.Status)
	}
	if filter.Tier != "" {
		q = q.Joins("JOIN plans ON plans.id = subscriptions.plan_id").Where("plans.tier = ?", filter.Tier)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var subs []models.Subscription
	err := q.Preload("Plan").
		Order("subscriptions.updated_at DESC, subscriptions.id DESC").
		Offset(filter.Offset).Limit(limit).
		Find(&subs).Error
	return subs, total, err
}

// CountByTier groups subscriptions by the tier of their plan
func (r *subscriptionRepository) CountByTier(ctx context.Context) ([]models.TierCount, error) {
	var rows []models.TierCount
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("plans.tier AS tier, COUNT(*) AS count").
		Joins("JOIN plans ON plans.id = subscriptions.plan_id").
		Group("plans.tier").
		Order("plans.tier").
		Scan(&rows).Error
	return rows, err
}

// CountByStatus groups subscriptions by status
func (r *subscriptionRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	var rows []models.StatusCount
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

// RevenueByCurrency sums captured payments per currency
func (r *subscriptionRepository) RevenueByCurrency(ctx context.Context) ([]models.RevenueTotal, error) {
	var rows []models.RevenueTotal
	err := r.db.WithContext(ctx).Model(&models.PaymentRecord{}).
		Select("currency, SUM(amount) AS amount, COUNT(*) AS payments").
		Where("status = ?", models.PaymentCaptured).
		Group("currency").
		Order("currency").
		Scan(&rows).Error
	return rows, err
}

// CreatedSince returns creation times of subscriptions created at or after since
func (r *subscriptionRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("created_at >= ?", since).
		Order("created_at").
		Pluck("created_at", &times).Error
	return times, err
}

// Transaction runs fn with a repository bound to a single database transaction
func (r *subscriptionRepository) Transaction(ctx context.Context, fn func(repo SubscriptionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&subscriptionRepository{db: tx})
	})
}
