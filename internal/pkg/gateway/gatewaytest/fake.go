// Package gatewaytest provides an in-memory gateway.Client for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/gateway"
)

const (
	KeySecret     = "test-key-secret"
	WebhookSecret = "test-webhook-secret"
)

type CreatedOrder struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Fake records orders and serves payments from memory. Signatures use the
// real HMAC scheme with KeySecret and WebhookSecret.
type Fake struct {
	mu       sync.Mutex
	Orders   []CreatedOrder
	Payments map[string]*gateway.Payment

	CreateErr error
	FetchErr  error
}

func NewFake() *Fake {
	return &Fake{Payments: map[string]*gateway.Payment{}}
}

func (f *Fake) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.Orders = append(f.Orders, CreatedOrder{AmountMinor: amountMinor, Currency: currency, Receipt: receipt, Notes: notes})
	return &gateway.Order{
		ID:       fmt.Sprintf("order_%d", len(f.Orders)),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}, nil
}

func (f *Fake) FetchPayment(_ context.Context, paymentID string) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	p, ok := f.Payments[paymentID]
	if !ok {
		return nil, &gateway.APIError{StatusCode: 404, Body: `{"error":"not found"}`}
	}
	return p, nil
}

// Capture registers a captured payment for an order created through the fake,
// carrying the order's amount and notes as the gateway would.
func (f *Fake) Capture(orderID, paymentID string) *gateway.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &gateway.Payment{ID: paymentID, OrderID: orderID, Status: "captured", Notes: gateway.Notes{}}
	for i, o := range f.Orders {
		if fmt.Sprintf("order_%d", i+1) != orderID {
			continue
		}
		p.Amount = o.AmountMinor
		p.Currency = o.Currency
		for k, v := range o.Notes {
			p.Notes[k] = v
		}
	}
	f.Payments[paymentID] = p
	return p
}

func (f *Fake) LastOrder() CreatedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Orders) == 0 {
		return CreatedOrder{}
	}
	return f.Orders[len(f.Orders)-1]
}

func (f *Fake) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature([]byte(orderID+"|"+paymentID), signature, KeySecret)
}

func (f *Fake) VerifyWebhookSignature(body []byte, signature string) bool {
	return gateway.VerifySignature(body, signature, WebhookSecret)
}

// PaymentSignature returns a valid checkout signature for the pair.
func PaymentSignature(orderID, paymentID string) string {
	return gateway.Sign([]byte(orderID+"|"+paymentID), KeySecret)
}

func WebhookSignature(body []byte) string {
	return gateway.Sign(body, WebhookSecret)
}
