package models

import "time"

// VendorCredential holds the endpoint and the encrypted API key of the external
// generation vendor serving one feature.
type VendorCredential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Feature      string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"feature"`
	EndpointURL  string    `gorm:"type:varchar(500);not null" json:"endpoint_url"`
	APIKeyCipher string    `gorm:"type:text;not null" json:"-"`
	KeyHint      string    `gorm:"type:varchar(12);default:''" json:"key_hint"`
	UpdatedBy    uint      `gorm:"not null;default:0" json:"updated_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
