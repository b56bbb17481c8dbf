// Package gateway integrates external payment providers behind a single
// Adapter interface. Adding a gateway means writing a new adapter and
// registering it; the payment coordinator never branches on gateway names.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Outcome is the normalized result of a gateway webhook.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ErrSignatureMismatch is returned when a webhook payload fails signature
// verification. The request must be rejected before any field of the
// payload is trusted.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// ErrUnknownGateway is returned by Registry.Get for a name no adapter was
// registered under.
var ErrUnknownGateway = errors.New("unknown gateway")

// IntentRequest carries everything a gateway needs to create a hosted
// payment session. Reference is generated by the coordinator and doubles
// as the idempotency key for the eventual webhook.
type IntentRequest struct {
	Reference     string
	AmountCents   uint32
	Currency      string
	RedirectURL   string
	CustomerEmail string
}

// Intent is the gateway's answer: a hosted checkout URL the buyer is sent
// to, echoing back the reference it was created under.
type Intent struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
}

// WebhookEvent is a gateway callback reduced to the fields the coordinator
// acts on. Raw retains the full payload for audit storage.
type WebhookEvent struct {
	Reference string
	Outcome   Outcome
	Raw       json.RawMessage
}

// Adapter is implemented once per external payment gateway.
type Adapter interface {
	// Name returns the identifier used in webhook URLs and config.
	Name() string
	// CreatePaymentIntent performs the outbound intent-creation call.
	// The call is synchronous I/O with a bounded timeout; its success
	// never confirms an order, only a verified webhook does.
	CreatePaymentIntent(ctx context.Context, req *IntentRequest) (*Intent, error)
	// VerifyWebhook checks the payload signature against the request
	// headers before any field may be trusted.
	VerifyWebhook(body []byte, header http.Header) error
	// ParseWebhook normalizes a verified payload.
	ParseWebhook(body []byte) (*WebhookEvent, error)
	// Refund asks the gateway to return amountCents of the transaction
	// identified by reference.
	Refund(ctx context.Context, reference string, amountCents uint32) error
}

// Registry maps gateway names to adapters. The default gateway is an
// explicit construction-time value, not ambient process state.
type Registry struct {
	adapters    map[string]Adapter
	defaultName string
}

// NewRegistry builds a registry over the given adapters; defaultName
// selects which one CreateOrder uses when the buyer does not specify.
func NewRegistry(defaultName string, adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters)), defaultName: defaultName}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	if _, ok := r.adapters[defaultName]; !ok {
		return nil, fmt.Errorf("gateway: default gateway %q not registered", defaultName)
	}
	return r, nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("gateway %q: %w", name, ErrUnknownGateway)
	}
	return a, nil
}

// Default returns the adapter configured as the default.
func (r *Registry) Default() Adapter {
	return r.adapters[r.defaultName]
}

// newHTTPClient builds the bounded-timeout client shared by the concrete
// adapters.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
