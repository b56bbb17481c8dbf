// Package ticket mints event tickets with tamper-evident QR payloads.
// Each ticket carries an HMAC-SHA256 signature over its identifying
// fields so the check-in validator can reject forged or edited payloads
// without a network round trip to anything but the ticket store.
package ticket

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// ticketNumberAttempts bounds the re-roll loop on ticket number
// collisions. With 8 hex chars of randomness per event a collision is
// already rare; five attempts makes running out practically impossible.
const ticketNumberAttempts = 5

// QRPayload is the JSON object persisted on the ticket and rendered as a
// QR code for the buyer. It embeds only the three signed fields and the
// signature itself; no PII.
type QRPayload struct {
	TicketID     uint64 `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	EventID      uint64 `json:"event_id"`
	Signature    string `json:"signature"`
}

// Issuer mints tickets inside the caller's transaction. The same signing
// secret is shared with the check-in validator.
type Issuer struct {
	secret  []byte
	tickets *repository.TicketRepo
}

// NewIssuer returns an Issuer signing with the given server-held secret.
func NewIssuer(secret string, tickets *repository.TicketRepo) *Issuer {
	return &Issuer{secret: []byte(secret), tickets: tickets}
}

// Sign computes the hex HMAC-SHA256 over (ticket id, ticket number,
// event id) with the server secret. Exported so the check-in validator
// can recompute it.
func Sign(secret []byte, ticketID uint64, ticketNumber string, eventID uint64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d|%s|%d", ticketID, ticketNumber, eventID)
	return hex.EncodeToString(mac.Sum(nil))
}

// newTicketNumber builds the human-verifiable ticket number: stable
// prefix, event id, random hex suffix.
func newTicketNumber(eventID uint64) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%d-%X", eventID, b), nil
}

// IssueTicketsTx mints count tickets for the order within the provided
// transaction. It is called exactly once per order, in the same
// transaction that marks the order confirmed; if tickets already exist
// for the order (a duplicate invocation that slipped past the payment
// idempotency guard) the existing set is left untouched and no new
// tickets are created.
func (i *Issuer) IssueTicketsTx(ctx context.Context, tx *sql.Tx, order *model.TicketOrder, count int) ([]model.EventTicket, error) {
	if count <= 0 {
		return nil, fmt.Errorf("ticket: invalid issue count %d", count)
	}
	existing, err := i.tickets.CountByOrderTx(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, nil
	}

	issued := make([]model.EventTicket, 0, count)
	for n := 0; n < count; n++ {
		t := model.EventTicket{
			OrderID: order.ID,
			EventID: order.EventID,
			Status:  model.TicketValid,
		}
		// Re-roll the number on a unique-key collision instead of failing
		// the whole confirmation.
		for attempt := 0; ; attempt++ {
			number, err := newTicketNumber(order.EventID)
			if err != nil {
				return nil, err
			}
			t.TicketNumber = number
			err = i.tickets.CreateTx(ctx, tx, &t)
			if err == nil {
				break
			}
			if !errors.Is(err, repository.ErrDuplicateTicketNumber) || attempt+1 >= ticketNumberAttempts {
				return nil, err
			}
		}

		payload := QRPayload{
			TicketID:     t.ID,
			TicketNumber: t.TicketNumber,
			EventID:      t.EventID,
			Signature:    Sign(i.secret, t.ID, t.TicketNumber, t.EventID),
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		t.QRPayload = string(raw)
		if err := i.tickets.SetQRPayloadTx(ctx, tx, t.ID, t.QRPayload); err != nil {
			return nil, err
		}
		issued = append(issued, t)
	}
	return issued, nil
}
