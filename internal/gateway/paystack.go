package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const paystackBaseURL = "https://api.paystack.co"

// Paystack implements Adapter against the Paystack API. Webhooks carry an
// x-paystack-signature header: the hex HMAC-SHA512 of the raw body keyed
// with the secret key.
type Paystack struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewPaystack constructs the adapter. timeout bounds every outbound call.
func NewPaystack(secretKey string, timeout time.Duration) *Paystack {
	return &Paystack{secretKey: secretKey, baseURL: paystackBaseURL, client: newHTTPClient(timeout)}
}

// Name returns the registry identifier.
func (p *Paystack) Name() string { return "paystack" }

// CreatePaymentIntent initializes a transaction and returns the hosted
// authorization URL. Paystack amounts are already in subunits.
func (p *Paystack) CreatePaymentIntent(ctx context.Context, req *IntentRequest) (*Intent, error) {
	payload := map[string]interface{}{
		"reference":    req.Reference,
		"amount":       req.AmountCents,
		"currency":     req.Currency,
		"callback_url": req.RedirectURL,
		"email":        req.CustomerEmail,
	}
	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := p.post(ctx, "/transaction/initialize", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack: transaction initialize rejected")
	}
	return &Intent{Reference: resp.Data.Reference, CheckoutURL: resp.Data.AuthorizationURL}, nil
}

// VerifyWebhook recomputes the body HMAC and compares it with the
// signature header.
func (p *Paystack) VerifyWebhook(body []byte, header http.Header) error {
	got := header.Get("x-paystack-signature")
	if got == "" {
		return ErrSignatureMismatch
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrSignatureMismatch
	}
	return nil
}

// ParseWebhook reduces a charge event to the reference and outcome.
func (p *Paystack) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("paystack: malformed webhook payload: %w", err)
	}
	if payload.Data.Reference == "" {
		return nil, fmt.Errorf("paystack: webhook payload missing reference")
	}
	outcome := OutcomeFailure
	if payload.Event == "charge.success" && payload.Data.Status == "success" {
		outcome = OutcomeSuccess
	}
	return &WebhookEvent{Reference: payload.Data.Reference, Outcome: outcome, Raw: json.RawMessage(body)}, nil
}

// Refund requests a (possibly partial) refund keyed by the original
// transaction reference.
func (p *Paystack) Refund(ctx context.Context, reference string, amountCents uint32) error {
	payload := map[string]interface{}{
		"transaction": reference,
		"amount":      amountCents,
	}
	var resp struct {
		Status bool `json:"status"`
	}
	if err := p.post(ctx, "/refund", payload, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("paystack: refund rejected")
	}
	return nil
}

func (p *Paystack) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: request failed: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("paystack: unexpected status %d: %s", res.StatusCode, data)
	}
	return json.Unmarshal(data, out)
}
