package model

import "time"

// Ticket status values.  A ticket is immutable after issuance except for
// the single valid -> used transition performed at check-in, and the
// out-of-band * -> cancelled transition performed by the refund flow.
const (
	TicketValid     = "valid"
	TicketUsed      = "used"
	TicketCancelled = "cancelled"
)

// EventTicket is one admitted unit, created only after the owning order's
// payment reaches completed.  QRPayload holds the signed JSON presented to
// the buyer; it embeds no PII, only the three signed fields and the HMAC.
type EventTicket struct {
	ID           uint64     `json:"id"`
	OrderID      uint64     `json:"order_id"`
	EventID      uint64     `json:"event_id"`
	TicketNumber string     `json:"ticket_number"`
	QRPayload    string     `json:"qr_payload"`
	Status       string     `json:"status"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy  *string    `json:"checked_in_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
