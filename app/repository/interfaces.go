package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	TouchAPIKey(ctx context.Context, id uint, at time.Time) error
	List(ctx context.Context, offset, limit int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

// PlanRepository defines the interface for the plan catalog and its offers
type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) error
	Update(ctx context.Context, plan *models.Plan) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Plan, error)
	GetByTier(ctx context.Context, tier models.PlanTier) (*models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
	ListAll(ctx context.Context) ([]models.Plan, error)
	TierExists(ctx context.Context, tier models.PlanTier, exceptID uint) (bool, error)
	CreateOffer(ctx context.Context, offer *models.Offer) error
	DeleteOffer(ctx context.Context, planID uint, code string) (int64, error)
	OfferCodeExists(ctx context.Context, planID uint, code string) (bool, error)
	RedeemOffer(ctx context.Context, offerID, userID uint, paymentID string) (bool, error)
}

// SubscriptionRepository defines the interface for per-user subscription records
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Subscription, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	Save(ctx context.Context, sub *models.Subscription) error
	IncrementUsage(ctx context.Context, id uint, column string) error
	AppendPayment(ctx context.Context, record *models.PaymentRecord) (bool, error)
	List(ctx context.Context, filter SubscriptionFilter) ([]models.Subscription, int64, error)
	CountByTier(ctx context.Context) ([]models.TierCount, error)
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	RevenueByCurrency(ctx context.Context) ([]models.RevenueTotal, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
	Transaction(ctx context.Context, fn func(repo SubscriptionRepository) error) error
}

// VendorCredentialRepository defines the interface for stored vendor credentials
type VendorCredentialRepository interface {
	Upsert(ctx context.Context, cred *models.VendorCredential) error
	GetByFeature(ctx context.Context, feature string) (*models.VendorCredential, error)
}

// SubscriptionFilter narrows admin subscription listings. Zero values match everything.
type SubscriptionFilter struct {
	Status models.SubscriptionStatus
	Tier   models.PlanTier
	Offset int
	Limit  int
}

// Repositories struct holds all repository instances
type Repositories struct {
	User             UserRepository
	Plan             PlanRepository
	Subscription     SubscriptionRepository
	VendorCredential VendorCredentialRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:             NewUserRepository(db),
		Plan:             NewPlanRepository(db),
		Subscription:     NewSubscriptionRepository(db),
		VendorCredential: NewVendorCredentialRepository(db),
	}
}
