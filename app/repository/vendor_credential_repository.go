package repository

import (
	"context"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type vendorCredentialRepository struct {
	db *gorm.DB
}

// NewVendorCredentialRepository creates a new vendor credential repository instance
func NewVendorCredentialRepository(db *gorm.DB) VendorCredentialRepository {
	return &vendorCredentialRepository{db: db}
}

// Upsert creates or replaces the credential for cred.Feature
func (r *vendorCredentialRepository) Upsert(ctx context.Context, cred *models.VendorCredential) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "feature"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"endpoint_url",
			"api_key_cipher",
			"key_hint",
			"updated_by",
			"updated_at",
		}),
	}).Create(cred).Error; err != nil {
		return err
	}
	return db.Where("feature = ?", cred.Feature).First(cred).Error
}

// GetByFeature returns the credential configured for a feature
func (r *vendorCredentialRepository) GetByFeature(ctx context.Context, feature string) (*models.VendorCredential, error) {
	var cred models.VendorCredential
	if err := r.db.WithContext(ctx).Where("feature = ?", feature).First(&cred).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}
