// Package checkin verifies scanned QR payloads and performs the single
// valid -> used transition for each ticket. A short grace window treats a
// repeated scan of a just-used ticket as success so double-taps and
// scanner retries do not alarm the gate staff.
package checkin

import (
	"context"
	"crypto/hmac"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/ticket"
)

// Outcome is the scan result surfaced to the scanning device. The three
// values are deliberately distinct so the UI can show a clear reason.
type Outcome string

const (
	Success     Outcome = "success"
	AlreadyUsed Outcome = "already_used"
	Invalid     Outcome = "invalid"
)

// ErrInvalidTicket is returned by Validate for any payload that cannot be
// trusted: malformed JSON, unknown ticket, signature mismatch or a field
// that disagrees with the stored ticket.
var ErrInvalidTicket = errors.New("invalid ticket payload")

// Validator checks QR payloads and admits ticket holders.
type Validator struct {
	db      *sql.DB
	secret  []byte
	grace   time.Duration
	tickets *repository.TicketRepo
	events  *repository.EventRepo
}

// NewValidator constructs a Validator. secret must match the issuer's
// signing secret; grace is the re-scan tolerance window.
func NewValidator(db *sql.DB, secret string, grace time.Duration, tickets *repository.TicketRepo, events *repository.EventRepo) *Validator {
	return &Validator{db: db, secret: []byte(secret), grace: grace, tickets: tickets, events: events}
}

// Validate parses a raw QR payload, looks up the referenced ticket and
// recomputes the signature over the embedded fields. A forged signature,
// an edited field or a ticket that no longer matches the payload all
// yield ErrInvalidTicket. Signature failures are logged as security
// events.
func (v *Validator) Validate(ctx context.Context, rawPayload string) (*model.EventTicket, error) {
	var payload ticket.QRPayload
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		return nil, ErrInvalidTicket
	}
	t, err := v.tickets.GetByID(ctx, payload.TicketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil, ErrInvalidTicket
		}
		return nil, err
	}
	if t.TicketNumber != payload.TicketNumber || t.EventID != payload.EventID {
		return nil, ErrInvalidTicket
	}
	want := ticket.Sign(v.secret, payload.TicketID, payload.TicketNumber, payload.EventID)
	if !hmac.Equal([]byte(want), []byte(payload.Signature)) {
		log.Printf("checkin: signature mismatch for ticket %d (possible forgery)", payload.TicketID)
		return nil, ErrInvalidTicket
	}
	return t, nil
}

// CheckIn validates the payload and transitions the ticket to used,
// incrementing the event's checked_in_count and recording the operator.
// A re-scan within the grace window of the ticket's own check-in reports
// Success without touching state; outside the window it reports
// AlreadyUsed. Cancelled tickets are Invalid.
func (v *Validator) CheckIn(ctx context.Context, rawPayload, operator string) (Outcome, *model.EventTicket, error) {
	t, err := v.Validate(ctx, rawPayload)
	if err != nil {
		if errors.Is(err, ErrInvalidTicket) {
			return Invalid, nil, nil
		}
		return Invalid, nil, err
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return Invalid, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	used, err := v.tickets.MarkUsedTx(ctx, tx, t.ID, operator)
	if err != nil {
		return Invalid, nil, err
	}
	if used {
		if err := v.events.AddCheckedInTx(ctx, tx, t.EventID); err != nil {
			return Invalid, nil, err
		}
		if err := tx.Commit(); err != nil {
			return Invalid, nil, err
		}
		committed = true
		fresh, err := v.tickets.GetByID(ctx, t.ID)
		if err != nil {
			fresh = t
		}
		return Success, fresh, nil
	}

	// The conditional update matched nothing, so the ticket is not valid
	// anymore. Re-read inside the transaction to tell a grace-window
	// rescan apart from a genuine double admission attempt.
	current, err := v.tickets.GetByIDTx(ctx, tx, t.ID)
	if err != nil {
		return Invalid, nil, err
	}
	if err := tx.Commit(); err != nil {
		return Invalid, nil, err
	}
	committed = true

	switch current.Status {
	case model.TicketUsed:
		if current.CheckedInAt != nil && time.Now().UTC().Sub(current.CheckedInAt.UTC()) <= v.grace {
			return Success, current, nil
		}
		return AlreadyUsed, current, nil
	default:
		return Invalid, current, nil
	}
}
