package repository

import (
	"context"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func preloadOffers(db *gorm.DB) *gorm.DB {
	return db.Preload("Offers", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	})
}

// Create inserts a plan together with any offers it carries
func (r *planRepository) Create(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

// Update saves the plan fields. Offers are managed separately.
func (r *planRepository) Update(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(plan).Error
}

// Delete deactivates and soft-deletes a plan
func (r *planRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Plan{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Plan{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// GetByID retrieves a plan and its offers
func (r *planRepository) GetByID(ctx context.Context, id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := preloadOffers(r.db.WithContext(ctx)).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByTier retrieves the plan of a tier and its offers
func (r *planRepository) GetByTier(ctx context.Context, tier models.PlanTier) (*models.Plan, error) {
	var plan models.Plan
	if err := preloadOffers(r.db.WithContext(ctx)).Where("tier = ?", tier).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive returns active plans in display order without their offers
func (r *planRepository) ListActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&plans).Error
	return plans, err
}

// ListAll returns every non-deleted plan in display order
func (r *planRepository) ListAll(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := preloadOffers(r.db.WithContext(ctx)).Order("sort_order ASC, id ASC").Find(&plans).Error
	return plans, err
}

// TierExists reports whether another plan, deleted or not, already uses the tier
func (r *planRepository) TierExists(ctx context.Context, tier models.PlanTier, exceptID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Plan{}).
		Where("tier = ? AND id <> ?", tier, exceptID).
		Count(&count).Error
	return count > 0, err
}

// CreateOffer attaches a new offer to a plan
func (r *planRepository) CreateOffer(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

// DeleteOffer removes an offer by plan and code and returns the number of rows removed
func (r *planRepository) DeleteOffer(ctx context.Context, planID uint, code string) (int64, error) {
	res := r.db.WithContext(ctx).Where("plan_id = ? AND code = ?", planID, code).Delete(&models.Offer{})
	return res.RowsAffected, res.Error
}

// OfferCodeExists reports whether the plan already has an offer with this code
func (r *planRepository) OfferCodeExists(ctx context.Context, planID uint, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("plan_id = ? AND code = ?", planID, code).
		Count(&count).Error
	return count > 0, err
}

// RedeemOffer records the redemption of an offer by a payment and bumps the
// offer counter. It returns false when the payment already redeemed it.
func (r *planRepository) RedeemOffer(ctx context.Context, offerID, userID uint, paymentID string) (bool, error) {
	redeemed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).Create(&models.OfferRedemption{OfferID: offerID, UserID: userID, PaymentID: paymentID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		redeemed = true
		return tx.Model(&models.Offer{}).
			Where("id = ?", offerID).
			UpdateColumn("current_redemptions", gorm.Expr("current_redemptions + ?", 1)).Error
	})
	return redeemed, err
}
