package model

import "time"

// Order status values.  An order is created pending and converges to
// exactly one terminal state; the transition is driven by verified webhook
// outcomes, never by the synchronous payment-intent call.
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderCancelled = "cancelled"
	OrderRefunded  = "refunded"
)

// TicketOrder groups the line items a buyer is purchasing for one event.
// PaymentID is set once when the payment row is created and never changes.
type TicketOrder struct {
	ID               uint64    `json:"id"`
	BuyerID          uint64    `json:"buyer_id"`
	EventID          uint64    `json:"event_id"`
	FinalAmountCents uint32    `json:"final_amount_cents"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"payment_status"`
	PaymentID        *uint64   `json:"payment_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OrderItem is a single line of an order: either an explicit seat
// (SeatID set, Quantity 1) or a package purchase (PackageID and Quantity
// set).  Exactly one of SeatID/PackageID is non-nil.
type OrderItem struct {
	ID             uint64  `json:"id"`
	OrderID        uint64  `json:"order_id"`
	SeatID         *uint64 `json:"seat_id,omitempty"`
	PackageID      *uint64 `json:"package_id,omitempty"`
	Quantity       uint32  `json:"quantity"`
	UnitPriceCents uint32  `json:"unit_price_cents"`
}
