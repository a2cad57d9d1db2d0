package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"

	defaultTimeout = 15 * time.Second
)

// Client is the subset of the payment gateway API the billing flow needs.
type Client interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	Notes    Notes  `json:"notes"`
}

type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Notes    Notes  `json:"notes"`
}

// Major returns the amount in major currency units.
func (p *Payment) Major() float64 {
	return FromMinorUnits(p.Amount)
}

// Notes are the free-form key/value pairs attached to orders and payments.
// The gateway serializes an empty set as a JSON array.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '[' || bytes.Equal(trimmed, []byte("null")) {
		*n = Notes{}
		return nil
	}
	raw := map[string]any{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*n = out
	return nil
}

// WebhookEvent is the envelope of a gateway webhook delivery.
type WebhookEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Payment returns the payment entity carried by the event, if any.
func (e *WebhookEvent) Payment() *Payment {
	if e.Payload.Payment.Entity.ID == "" {
		return nil
	}
	return &e.Payload.Payment.Entity
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if strings.TrimSpace(ev.Event) == "" {
		return nil, errors.New("webhook payload missing event type")
	}
	return &ev, nil
}

// ToMinorUnits converts a major-unit amount (rupees) to minor units (paise).
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}

// HTTPClient talks to the gateway REST API with basic auth.
type HTTPClient struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string

	HTTPClient *http.Client
}

func NewHTTPClient(cfg config.Gateway) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		BaseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		KeyID:         strings.TrimSpace(cfg.KeyID),
		KeySecret:     strings.TrimSpace(cfg.KeySecret),
		WebhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error) {
	if amountMinor <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %d", amountMinor)
	}
	if strings.TrimSpace(currency) == "" {
		return nil, errors.New("order currency is required")
	}

	payload := map[string]any{
		"amount":   amountMinor,
		"currency": strings.ToUpper(currency),
		"receipt":  receipt,
		"notes":    notes,
	}
	var out Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &out); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("create order: response missing order id")
	}
	return &out, nil
}

func (c *HTTPClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", id, err)
	}
	return &out, nil
}

// VerifyPaymentSignature checks the checkout signature, an HMAC-SHA256 of
// "orderID|paymentID" keyed with the API key secret.
func (c *HTTPClient) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return VerifySignature([]byte(orderID+"|"+paymentID), signature, c.KeySecret)
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the raw request body keyed
// with the webhook secret.
func (c *HTTPClient) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifySignature(body, signature, c.WebhookSecret)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.KeyID == "" || c.KeySecret == "" {
		return errors.New("GATEWAY_KEY_ID/GATEWAY_KEY_SECRET are not configured")
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return json.Unmarshal(raw, out)
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(payload []byte, signature, secret string) bool {
	sig := strings.TrimSpace(signature)
	key := strings.TrimSpace(secret)
	if sig == "" || key == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
