package billing

import "github.com/ManuelReschke/SoundSmith/app/models"

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	GatewayOrderID  string
	PayloadJSON     string
	SignatureValid  bool
}

// OrderRequest asks for a gateway order for a paid plan.
type OrderRequest struct {
	UserID       uint   `json:"-"`
	PlanID       uint   `json:"plan_id" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=monthly yearly"`
	PromoCode    string `json:"promo_code" validate:"max=50"`
}

// OrderResult is returned to the client to open the gateway checkout.
type OrderResult struct {
	OrderID         string              `json:"order_id"`
	Amount          float64             `json:"amount"`
	AmountMinor     int64               `json:"amount_minor"`
	Currency        string              `json:"currency"`
	PlanID          uint                `json:"plan_id"`
	BillingCycle    models.BillingCycle `json:"billing_cycle"`
	PromoCode       string              `json:"promo_code,omitempty"`
	DiscountPercent float64             `json:"discount_percent,omitempty"`
	KeyID           string              `json:"key_id,omitempty"`
}

// VerifyRequest carries the checkout callback fields.
type VerifyRequest struct {
	UserID       uint   `json:"-"`
	OrderID      string `json:"order_id"`
	PaymentID    string `json:"payment_id"`
	Signature    string `json:"signature"`
	PlanID       uint   `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	PromoCode    string `json:"promo_code"`
}

// WebhookResult describes how a delivery was handled.
type WebhookResult struct {
	Event          string `json:"event"`
	Result         string `json:"result"`
	Duplicate      bool   `json:"duplicate"`
	SubscriptionID uint   `json:"subscription_id,omitempty"`
}
