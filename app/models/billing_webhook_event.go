package models

import "time"

// WebhookProviderGateway is the provider name recorded for payment gateway deliveries.
const WebhookProviderGateway = "gateway"

// Webhook processing outcomes.
const (
	WebhookResultProcessed = "processed"
	WebhookResultIgnored   = "ignored"
	WebhookResultFailed    = "failed"
)

// BillingWebhookEvent stores every webhook delivery keyed by (provider, event id)
// so that redeliveries are acknowledged without being applied twice.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	GatewayOrderID  string     `gorm:"type:varchar(191);default:'';index" json:"gateway_order_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Result          string     `gorm:"type:varchar(20);default:''" json:"result"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Processed reports whether a previous delivery already finished processing.
func (e *BillingWebhookEvent) Processed() bool {
	return e != nil && e.ProcessedAt != nil && e.ProcessingError == ""
}
