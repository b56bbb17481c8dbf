package model // package model defines the domain entities persisted by the repositories

import "time"

// Event represents a capacity-limited event that tickets are sold for.
// RegisteredCount tracks how many ticket units have been sold and
// CheckedInCount how many of those have been admitted at the door.
// The repository layer guarantees checked_in_count <= registered_count
// <= capacity through conditional updates.
type Event struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	Venue           string    `json:"venue"`
	Capacity        uint32    `json:"capacity"`
	RegisteredCount uint32    `json:"registered_count"`
	CheckedInCount  uint32    `json:"checked_in_count"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TicketPackage is an anonymous capacity counter for an event: a priced
// bucket of identical admission units.  QuantitySold may never exceed
// QuantityAvailable; active package holds further reduce what can be
// reserved but are tracked in their own table.
type TicketPackage struct {
	ID                uint64 `json:"id"`
	EventID           uint64 `json:"event_id"`
	Name              string `json:"name"`
	PriceCents        uint32 `json:"price_cents"`
	QuantityAvailable uint32 `json:"quantity_available"`
	QuantitySold      uint32 `json:"quantity_sold"`
}
