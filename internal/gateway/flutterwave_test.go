package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlutterwaveVerifyWebhook(t *testing.T) {
	f := NewFlutterwave("sk", "my-secret-hash", time.Second)

	h := http.Header{}
	h.Set("verif-hash", "my-secret-hash")
	assert.NoError(t, f.VerifyWebhook([]byte(`{}`), h))

	h.Set("verif-hash", "wrong-hash")
	assert.ErrorIs(t, f.VerifyWebhook([]byte(`{}`), h), ErrSignatureMismatch)

	assert.ErrorIs(t, f.VerifyWebhook([]byte(`{}`), http.Header{}), ErrSignatureMismatch)
}

func TestFlutterwaveParseWebhook(t *testing.T) {
	f := NewFlutterwave("sk", "hash", time.Second)

	ev, err := f.ParseWebhook([]byte(`{"event":"charge.completed","data":{"tx_ref":"order-1-99","status":"successful"}}`))
	require.NoError(t, err)
	assert.Equal(t, "order-1-99", ev.Reference)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)

	ev, err = f.ParseWebhook([]byte(`{"event":"charge.completed","data":{"tx_ref":"order-1-99","status":"failed"}}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, ev.Outcome)

	_, err = f.ParseWebhook([]byte(`{"event":"charge.completed","data":{}}`))
	assert.Error(t, err)

	_, err = f.ParseWebhook([]byte(`not-json`))
	assert.Error(t, err)
}

func TestFlutterwaveCreatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "order-5-1", req["tx_ref"])
		assert.Equal(t, "125.50", req["amount"]) // cents rendered as a decimal string
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data":   map[string]string{"link": "https://checkout.flutterwave.com/pay/abc"},
		})
	}))
	defer srv.Close()

	f := NewFlutterwave("sk-test", "hash", time.Second)
	f.baseURL = srv.URL

	intent, err := f.CreatePaymentIntent(context.Background(), &IntentRequest{
		Reference:   "order-5-1",
		AmountCents: 12550,
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "order-5-1", intent.Reference)
	assert.Equal(t, "https://checkout.flutterwave.com/pay/abc", intent.CheckoutURL)
}

func TestFlutterwaveRefundRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/order-5-1/refund", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	}))
	defer srv.Close()

	f := NewFlutterwave("sk-test", "hash", time.Second)
	f.baseURL = srv.URL

	err := f.Refund(context.Background(), "order-5-1", 1000)
	assert.Error(t, err)
}
