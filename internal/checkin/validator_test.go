package checkin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/ticket"
)

const testSecret = "checkin-test-secret"

func newTestValidator(t *testing.T, grace time.Duration) (*Validator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	v := NewValidator(db, testSecret, grace, repository.NewTicketRepo(db), repository.NewEventRepo(db))
	return v, mock
}

func signedPayload(t *testing.T, ticketID uint64, number string, eventID uint64) string {
	t.Helper()
	raw, err := json.Marshal(ticket.QRPayload{
		TicketID:     ticketID,
		TicketNumber: number,
		EventID:      eventID,
		Signature:    ticket.Sign([]byte(testSecret), ticketID, number, eventID),
	})
	require.NoError(t, err)
	return string(raw)
}

func ticketRow(id, orderID, eventID uint64, number, status string, checkedInAt interface{}, operator interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_id", "event_id", "ticket_number", "qr_payload",
		"status", "checked_in_at", "checked_in_by", "created_at",
	}).AddRow(id, orderID, eventID, number, "{}", status, checkedInAt, operator, time.Now().UTC())
}

func TestValidateRejectsMalformedPayload(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)
	_, err := v.Validate(context.Background(), "not json at all")
	assert.ErrorIs(t, err, ErrInvalidTicket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRejectsForgedSignature(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)

	payload := ticket.QRPayload{
		TicketID:     7,
		TicketNumber: "TKT-3-AABBCCDD",
		EventID:      3,
		Signature:    ticket.Sign([]byte("wrong-secret"), 7, "TKT-3-AABBCCDD", 3),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketValid, nil, nil))

	_, err = v.Validate(context.Background(), string(raw))
	assert.ErrorIs(t, err, ErrInvalidTicket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRejectsFieldMismatch(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)

	// stored ticket belongs to a different event than the payload claims
	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 99, "TKT-3-AABBCCDD", model.TicketValid, nil, nil))

	_, err := v.Validate(context.Background(), signedPayload(t, 7, "TKT-3-AABBCCDD", 3))
	assert.ErrorIs(t, err, ErrInvalidTicket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInAdmitsValidTicket(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)
	payload := signedPayload(t, 7, "TKT-3-AABBCCDD", 3)

	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketValid, nil, nil))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE event_tickets").
		WithArgs(model.TicketUsed, "gate-1", uint64(7), model.TicketValid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketUsed, time.Now().UTC(), "gate-1"))

	outcome, tk, err := v.CheckIn(context.Background(), payload, "gate-1")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	require.NotNil(t, tk)
	assert.Equal(t, model.TicketUsed, tk.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInGraceWindowRescanIsSuccess(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)
	payload := signedPayload(t, 7, "TKT-3-AABBCCDD", 3)
	scannedAt := time.Now().UTC().Add(-10 * time.Second)

	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketUsed, scannedAt, "gate-1"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE event_tickets").
		WillReturnResult(sqlmock.NewResult(0, 0)) // no longer valid, nothing to update
	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketUsed, scannedAt, "gate-1"))
	mock.ExpectCommit()

	outcome, _, err := v.CheckIn(context.Background(), payload, "gate-1")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInOutsideGraceWindowIsAlreadyUsed(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)
	payload := signedPayload(t, 7, "TKT-3-AABBCCDD", 3)
	scannedAt := time.Now().UTC().Add(-2 * time.Minute)

	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketUsed, scannedAt, "gate-1"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE event_tickets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketUsed, scannedAt, "gate-1"))
	mock.ExpectCommit()

	outcome, _, err := v.CheckIn(context.Background(), payload, "gate-2")
	require.NoError(t, err)
	assert.Equal(t, AlreadyUsed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInCancelledTicketIsInvalid(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)
	payload := signedPayload(t, 7, "TKT-3-AABBCCDD", 3)

	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketCancelled, nil, nil))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE event_tickets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(7)).
		WillReturnRows(ticketRow(7, 10, 3, "TKT-3-AABBCCDD", model.TicketCancelled, nil, nil))
	mock.ExpectCommit()

	outcome, _, err := v.CheckIn(context.Background(), payload, "gate-1")
	require.NoError(t, err)
	assert.Equal(t, Invalid, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInUnknownTicketIsInvalid(t *testing.T) {
	v, mock := newTestValidator(t, 30*time.Second)
	payload := signedPayload(t, 404, "TKT-3-AABBCCDD", 3)

	mock.ExpectQuery("SELECT .+ FROM event_tickets WHERE id").WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "event_id", "ticket_number", "qr_payload",
			"status", "checked_in_at", "checked_in_by", "created_at",
		}))

	outcome, _, err := v.CheckIn(context.Background(), payload, "gate-1")
	require.NoError(t, err)
	assert.Equal(t, Invalid, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}
