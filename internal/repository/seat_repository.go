package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// SeatRepo encapsulates database operations on the seats table. Every
// status transition is a conditional UPDATE that checks the current state
// in the same statement, so there is never a read-then-write window in
// which two buyers could claim the same seat.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo given a DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ReserveTx attempts to move every listed seat from available to reserved
// in a single statement, stamping the hold token and expiry. It returns
// the number of rows that actually transitioned; callers compare that
// against len(seatIDs) and roll back on a partial match, which is what
// makes the reservation all-or-nothing.
func (r *SeatRepo) ReserveTx(ctx context.Context, tx *sql.Tx, eventID uint64, seatIDs []uint64, token string, until time.Time) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	query := `UPDATE seats
	          SET status = ?, hold_token = ?, reserved_until = ?
	          WHERE event_id = ? AND id IN (` + placeholders(len(seatIDs)) + `) AND status = ?`
	args := make([]interface{}, 0, len(seatIDs)+5)
	args = append(args, model.SeatReserved, token, until.UTC().Format("2006-01-02 15:04:05"), eventID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	args = append(args, model.SeatAvailable)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseByTokenTx returns every seat still reserved under the given hold
// token to available. Seats that have since expired and been re-reserved
// by someone else carry a different token and are left untouched, which
// prevents a stale handle from releasing another buyer's hold.
func (r *SeatRepo) ReleaseByTokenTx(ctx context.Context, tx *sql.Tx, token string) (int64, error) {
	const q = `UPDATE seats
	           SET status = ?, hold_token = NULL, reserved_until = NULL
	           WHERE hold_token = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.SeatAvailable, token, model.SeatReserved)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkSoldByTokenTx finalizes the sale of all seats held under the token.
// Only seats still reserved with an unexpired hold transition to sold; the
// returned count lets the caller detect holds lost to expiry.
func (r *SeatRepo) MarkSoldByTokenTx(ctx context.Context, tx *sql.Tx, token string) (int64, error) {
	const q = `UPDATE seats
	           SET status = ?, hold_token = NULL, reserved_until = NULL
	           WHERE hold_token = ? AND status = ? AND reserved_until > UTC_TIMESTAMP()`
	res, err := tx.ExecContext(ctx, q, model.SeatSold, token, model.SeatReserved)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepExpiredTx reclaims every seat whose hold has lapsed. The status
// guard makes the sweep safe to run concurrently with Reserve and Release:
// a seat re-reserved a moment earlier carries a future reserved_until and
// is not matched.
func (r *SeatRepo) SweepExpiredTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	const q = `UPDATE seats
	           SET status = ?, hold_token = NULL, reserved_until = NULL
	           WHERE status = ? AND reserved_until <= UTC_TIMESTAMP()`
	res, err := tx.ExecContext(ctx, q, model.SeatAvailable, model.SeatReserved)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ActiveByTokenTx returns the seats currently held under the token with an
// unexpired hold. Order creation uses this to price the order and to pin
// the line items to concrete seat ids.
func (r *SeatRepo) ActiveByTokenTx(ctx context.Context, tx *sql.Tx, token string) ([]model.Seat, error) {
	const q = `SELECT id, event_id, section, row_label, seat_number, price_cents, status
	           FROM seats
	           WHERE hold_token = ? AND status = ? AND reserved_until > UTC_TIMESTAMP()
	           ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, token, model.SeatReserved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.EventID, &s.Section, &s.RowLabel, &s.SeatNumber, &s.PriceCents, &s.Status); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// ReleaseSoldTx moves sold seats back to available. This is the explicit
// inventory-release hook used by the refund flow; it is never triggered by
// expiry or cancellation.
func (r *SeatRepo) ReleaseSoldTx(ctx context.Context, tx *sql.Tx, seatIDs []uint64) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	query := `UPDATE seats SET status = ? WHERE id IN (` + placeholders(len(seatIDs)) + `) AND status = ?`
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, model.SeatAvailable)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	args = append(args, model.SeatSold)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByEvent returns all seats of an event for the public availability
// view. Holds are not attributed; callers only see the coarse status.
func (r *SeatRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	const q = `SELECT id, event_id, section, row_label, seat_number, price_cents, status, reserved_until
	           FROM seats WHERE event_id = ? ORDER BY section, row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		var until sql.NullTime
		if err := rows.Scan(&s.ID, &s.EventID, &s.Section, &s.RowLabel, &s.SeatNumber, &s.PriceCents, &s.Status, &until); err != nil {
			return nil, err
		}
		if until.Valid {
			t := until.Time
			s.ReservedUntil = &t
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
