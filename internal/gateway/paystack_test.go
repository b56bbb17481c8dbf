package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paystackSign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackVerifyWebhook(t *testing.T) {
	p := NewPaystack("sk-test", time.Second)
	body := []byte(`{"event":"charge.success"}`)

	h := http.Header{}
	h.Set("x-paystack-signature", paystackSign("sk-test", body))
	assert.NoError(t, p.VerifyWebhook(body, h))

	// tampering with one byte of the body invalidates the signature
	tampered := append([]byte(nil), body...)
	tampered[0] = ' '
	assert.ErrorIs(t, p.VerifyWebhook(tampered, h), ErrSignatureMismatch)

	assert.ErrorIs(t, p.VerifyWebhook(body, http.Header{}), ErrSignatureMismatch)
}

func TestPaystackParseWebhook(t *testing.T) {
	p := NewPaystack("sk-test", time.Second)

	ev, err := p.ParseWebhook([]byte(`{"event":"charge.success","data":{"reference":"order-2-7","status":"success"}}`))
	require.NoError(t, err)
	assert.Equal(t, "order-2-7", ev.Reference)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)

	ev, err = p.ParseWebhook([]byte(`{"event":"charge.failed","data":{"reference":"order-2-7","status":"failed"}}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, ev.Outcome)

	_, err = p.ParseWebhook([]byte(`{"event":"charge.success","data":{}}`))
	assert.Error(t, err)
}

func TestPaystackCreatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.EqualValues(t, 12550, req["amount"]) // subunits, no conversion
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": map[string]string{
				"authorization_url": "https://checkout.paystack.com/xyz",
				"reference":         "order-2-7",
			},
		})
	}))
	defer srv.Close()

	p := NewPaystack("sk-test", time.Second)
	p.baseURL = srv.URL

	intent, err := p.CreatePaymentIntent(context.Background(), &IntentRequest{
		Reference:   "order-2-7",
		AmountCents: 12550,
		Currency:    "NGN",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/xyz", intent.CheckoutURL)
	assert.Equal(t, "order-2-7", intent.Reference)
}

func TestPaystackRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refund", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "order-2-7", req["transaction"])
		_ = json.NewEncoder(w).Encode(map[string]bool{"status": true})
	}))
	defer srv.Close()

	p := NewPaystack("sk-test", time.Second)
	p.baseURL = srv.URL

	assert.NoError(t, p.Refund(context.Background(), "order-2-7", 500))
}
