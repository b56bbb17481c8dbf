package model

import "time"

// Payment status values.  Mutated only by webhook processing and the
// refund flow; every transition is a conditional UPDATE keyed on the
// current status so duplicate webhooks collapse into no-ops.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Payment is the local record of one payment attempt against an order.
// TransactionReference is generated by the coordinator before the gateway
// is called and doubles as the idempotency key for webhook lookups.
// GatewayResponse stores the raw gateway payload opaquely for audit.
type Payment struct {
	ID                   uint64     `json:"id"`
	OrderID              uint64     `json:"order_id"`
	Gateway              string     `json:"gateway"`
	TransactionReference string     `json:"transaction_reference"`
	AmountCents          uint32     `json:"amount_cents"`
	Currency             string     `json:"currency"`
	Status               string     `json:"status"`
	GatewayResponse      *string    `json:"-"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	RefundAmountCents    uint32     `json:"refund_amount_cents"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
