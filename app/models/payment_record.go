package models

import "time"

// PaymentStatus is the outcome of a gateway payment as recorded locally.
type PaymentStatus string

const (
	PaymentCaptured PaymentStatus = "captured"
	PaymentFailed   PaymentStatus = "failed"
)

// Payment sources, i.e. which path appended the record.
const (
	PaymentSourceVerify  = "verify"
	PaymentSourceWebhook = "webhook"
)

// PaymentRecord is one append-only entry of a subscription's payment history.
// (gateway_payment_id, status) is unique so replays do not duplicate entries.
type PaymentRecord struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	SubscriptionID   uint          `gorm:"not null;index" json:"subscription_id"`
	GatewayPaymentID string        `gorm:"type:varchar(191);not null;index:ux_payment_records_payment_status,unique,priority:1" json:"gateway_payment_id"`
	GatewayOrderID   string        `gorm:"type:varchar(191);default:'';index" json:"gateway_order_id"`
	Amount           float64       `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null;index:ux_payment_records_payment_status,unique,priority:2" json:"status"`
	Source           string        `gorm:"type:varchar(20);not null;default:''" json:"source"`
	PaidAt           time.Time     `gorm:"type:datetime;not null" json:"paid_at"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
}
