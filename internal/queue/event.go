// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderConfirmedEvent is published after an order's payment webhook is
// verified and tickets are issued. It contains enough information for
// downstream consumers to notify the buyer or feed analytics without
// querying the primary database.
type OrderConfirmedEvent struct {
	OrderID          uint64   `json:"order_id"`
	BuyerID          uint64   `json:"buyer_id"`
	EventID          uint64   `json:"event_id"`
	Gateway          string   `json:"gateway"`
	Reference        string   `json:"transaction_reference"`
	FinalAmountCents uint32   `json:"final_amount_cents"`
	Currency         string   `json:"currency"`
	TicketNumbers    []string `json:"ticket_numbers"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// TicketCheckedInEvent is published when a ticket is admitted at the door.
type TicketCheckedInEvent struct {
	TicketID     uint64 `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	EventID      uint64 `json:"event_id"`
	Operator     string `json:"operator"`
	CheckedInAt  string `json:"checked_in_at"`
}
