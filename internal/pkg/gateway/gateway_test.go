package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.Gateway{BaseURL: srv.URL + "/", KeyID: "rzp_test", KeySecret: "key-secret", WebhookSecret: "hook-secret"})
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test", user)
		assert.Equal(t, "key-secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 80000, body["amount"])
		assert.Equal(t, "INR", body["currency"])
		assert.Equal(t, "rcpt_1", body["receipt"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_1","amount":80000,"currency":"INR","receipt":"rcpt_1","status":"created","notes":{"user_id":"1"}}`))
	})

	order, err := c.CreateOrder(context.Background(), 80000, "inr", "rcpt_1", map[string]string{"user_id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.ID)
	assert.Equal(t, int64(80000), order.Amount)
	assert.Equal(t, "1", order.Notes["user_id"])
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})

	_, err := c.CreateOrder(context.Background(), 0, "INR", "r", nil)
	assert.Error(t, err)
	_, err = c.CreateOrder(context.Background(), 100, "", "r", nil)
	assert.Error(t, err)
}

func TestCreateOrderGatewayError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR"}}`))
	})

	_, err := c.CreateOrder(context.Background(), 100, "INR", "r", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestFetchPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_1","order_id":"order_1","amount":80000,"currency":"INR","status":"captured","notes":[]}`))
	})

	p, err := c.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "order_1", p.OrderID)
	assert.InDelta(t, 800.0, p.Major(), 0.0001)
	assert.Empty(t, p.Notes)

	_, err = c.FetchPayment(context.Background(), " ")
	assert.Error(t, err)
}

func TestMissingCredentials(t *testing.T) {
	c := NewHTTPClient(config.Gateway{BaseURL: "http://127.0.0.1:1"})
	_, err := c.FetchPayment(context.Background(), "pay_1")
	assert.ErrorContains(t, err, "not configured")
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := NewHTTPClient(config.Gateway{KeySecret: "key-secret", WebhookSecret: "hook-secret"})
	sig := Sign([]byte("order_1|pay_1"), "key-secret")

	assert.True(t, c.VerifyPaymentSignature("order_1", "pay_1", sig))
	assert.False(t, c.VerifyPaymentSignature("order_1", "pay_2", sig))
	assert.False(t, c.VerifyPaymentSignature("order_1", "pay_1", Sign([]byte("order_1|pay_1"), "hook-secret")))
	assert.False(t, c.VerifyPaymentSignature("order_1", "pay_1", "not-hex"))
	assert.False(t, c.VerifyPaymentSignature("", "pay_1", sig))
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := NewHTTPClient(config.Gateway{KeySecret: "key-secret", WebhookSecret: "hook-secret"})
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, c.VerifyWebhookSignature(body, Sign(body, "hook-secret")))
	assert.False(t, c.VerifyWebhookSignature(body, Sign(body, "key-secret")))
	assert.False(t, c.VerifyWebhookSignature(body, ""))
	assert.False(t, c.VerifyWebhookSignature([]byte(`{"event":"payment.failed"}`), Sign(body, "hook-secret")))
}

func TestParseWebhookEvent(t *testing.T) {
	ev, err := ParseWebhookEvent([]byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_1", "order_id": "order_1", "amount": 250000, "currency": "INR",
			"notes": {"user_id": "7", "plan_id": 3}
		}}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentCaptured, ev.Event)
	require.NotNil(t, ev.Payment())
	assert.Equal(t, "order_1", ev.Payment().OrderID)
	assert.Equal(t, "3", ev.Payment().Notes["plan_id"])

	other, err := ParseWebhookEvent([]byte(`{"event":"refund.created","payload":{}}`))
	require.NoError(t, err)
	assert.Nil(t, other.Payment())

	_, err = ParseWebhookEvent([]byte(`{}`))
	assert.Error(t, err)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(80000), ToMinorUnits(800))
	assert.Equal(t, int64(99999), ToMinorUnits(999.99))
	assert.Equal(t, int64(1), ToMinorUnits(0.005))
	assert.InDelta(t, 12.34, FromMinorUnits(1234), 0.0001)
}
