package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo provides data access to the events table. Counter updates are
// expressed as guarded increments so the capacity invariants hold even
// under concurrent confirmation and check-in traffic.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

// GetByID loads a single event. It returns ErrEventNotFound when no row
// matches.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT id, name, venue, capacity, registered_count, checked_in_count,
	                  starts_at, ends_at, created_at, updated_at
	           FROM events WHERE id = ?`
	var ev model.Event
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&ev.ID, &ev.Name, &ev.Venue, &ev.Capacity, &ev.RegisteredCount, &ev.CheckedInCount,
		&ev.StartsAt, &ev.EndsAt, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// AddRegisteredTx increments registered_count by n within the provided
// transaction. The guard keeps registered_count <= capacity; when it would
// be exceeded the update matches no row and ErrReservationConflict is
// returned so the caller rolls the whole step back.
func (r *EventRepo) AddRegisteredTx(ctx context.Context, tx *sql.Tx, eventID uint64, n uint32) error {
	const q = `UPDATE events
	           SET registered_count = registered_count + ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND registered_count + ? <= capacity`
	res, err := tx.ExecContext(ctx, q, n, eventID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrReservationConflict
	}
	return nil
}

// AddCheckedInTx increments checked_in_count within the provided
// transaction, guarded so it can never exceed registered_count.
func (r *EventRepo) AddCheckedInTx(ctx context.Context, tx *sql.Tx, eventID uint64) error {
	const q = `UPDATE events
	           SET checked_in_count = checked_in_count + 1, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND checked_in_count < registered_count`
	res, err := tx.ExecContext(ctx, q, eventID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}
