package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// Flutterwave implements Adapter against the Flutterwave v3 API. Webhooks
// are authenticated by the verif-hash header, which must equal the secret
// hash configured on the dashboard.
type Flutterwave struct {
	secretKey   string
	webhookHash string
	baseURL     string
	client      *http.Client
}

// NewFlutterwave constructs the adapter. timeout bounds every outbound
// call.
func NewFlutterwave(secretKey, webhookHash string, timeout time.Duration) *Flutterwave {
	return &Flutterwave{
		secretKey:   secretKey,
		webhookHash: webhookHash,
		baseURL:     flutterwaveBaseURL,
		client:      newHTTPClient(timeout),
	}
}

// Name returns the registry identifier.
func (f *Flutterwave) Name() string { return "flutterwave" }

// CreatePaymentIntent creates a hosted payment page and returns its link.
func (f *Flutterwave) CreatePaymentIntent(ctx context.Context, req *IntentRequest) (*Intent, error) {
	payload := map[string]interface{}{
		"tx_ref":       req.Reference,
		"amount":       fmt.Sprintf("%d.%02d", req.AmountCents/100, req.AmountCents%100),
		"currency":     req.Currency,
		"redirect_url": req.RedirectURL,
		"customer":     map[string]string{"email": req.CustomerEmail},
	}
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := f.post(ctx, "/payments", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" || resp.Data.Link == "" {
		return nil, fmt.Errorf("flutterwave: payment creation rejected (status=%q)", resp.Status)
	}
	return &Intent{Reference: req.Reference, CheckoutURL: resp.Data.Link}, nil
}

// VerifyWebhook compares the verif-hash header with the configured secret
// hash in constant time.
func (f *Flutterwave) VerifyWebhook(body []byte, header http.Header) error {
	got := header.Get("verif-hash")
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(f.webhookHash)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// ParseWebhook reduces a charge event to the reference and outcome.
func (f *Flutterwave) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			TxRef  string `json:"tx_ref"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("flutterwave: malformed webhook payload: %w", err)
	}
	if payload.Data.TxRef == "" {
		return nil, fmt.Errorf("flutterwave: webhook payload missing tx_ref")
	}
	outcome := OutcomeFailure
	if payload.Data.Status == "successful" {
		outcome = OutcomeSuccess
	}
	return &WebhookEvent{Reference: payload.Data.TxRef, Outcome: outcome, Raw: json.RawMessage(body)}, nil
}

// Refund requests a (possibly partial) refund of the transaction.
func (f *Flutterwave) Refund(ctx context.Context, reference string, amountCents uint32) error {
	payload := map[string]interface{}{
		"amount": fmt.Sprintf("%d.%02d", amountCents/100, amountCents%100),
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := f.post(ctx, "/transactions/"+reference+"/refund", payload, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("flutterwave: refund rejected (status=%q)", resp.Status)
	}
	return nil
}

func (f *Flutterwave) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+f.secretKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("flutterwave: request failed: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("flutterwave: unexpected status %d: %s", res.StatusCode, data)
	}
	return json.Unmarshal(data, out)
}
