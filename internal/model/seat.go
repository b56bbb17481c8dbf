package model

import "time"

// Seat status values.  A seat moves available -> reserved -> sold, or back
// from reserved to available when its hold expires or is released.  Sold
// seats only become available again through the refund flow.
const (
	SeatAvailable = "available"
	SeatReserved  = "reserved"
	SeatSold      = "sold"
)

// Seat is a venue-assigned sellable unit.  ReservedUntil and HoldToken are
// set together when the seat is reserved and cleared together when the hold
// is released or swept; status transitions happen in the same conditional
// UPDATE as the availability check so two buyers can never hold one seat.
type Seat struct {
	ID            uint64     `json:"id"`
	EventID       uint64     `json:"event_id"`
	Section       string     `json:"section"`
	RowLabel      string     `json:"row_label"`
	SeatNumber    uint32     `json:"seat_number"`
	PriceCents    uint32     `json:"price_cents"`
	Status        string     `json:"status"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	HoldToken     *string    `json:"-"`
}
