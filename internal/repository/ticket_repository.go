package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key
// violation, used to detect ticket number collisions so the issuer can
// re-roll instead of failing the order.
const mysqlDuplicateEntry = 1062

// ErrDuplicateTicketNumber signals that an insert collided on the unique
// ticket_number index.
var ErrDuplicateTicketNumber = errors.New("duplicate ticket number")

// TicketRepo provides data access to the event_tickets table. Tickets are
// created inside the order-confirmation transaction and afterwards only
// ever mutated through the check-in conditional update or the refund
// cancellation.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// CreateTx inserts a new ticket and populates the generated ID. A unique
// key violation on ticket_number is mapped to ErrDuplicateTicketNumber.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.EventTicket) error {
	const q = `INSERT INTO event_tickets (order_id, event_id, ticket_number, qr_payload, status)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.OrderID, t.EventID, t.TicketNumber, t.QRPayload, t.Status)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrDuplicateTicketNumber
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// SetQRPayloadTx stores the signed QR payload once the ticket id is known.
func (r *TicketRepo) SetQRPayloadTx(ctx context.Context, tx *sql.Tx, id uint64, payload string) error {
	_, err := tx.ExecContext(ctx, `UPDATE event_tickets SET qr_payload = ? WHERE id = ?`, payload, id)
	return err
}

// CountByOrderTx returns how many tickets exist for an order. The issuer
// uses this as a second line of defense against double issuance.
func (r *TicketRepo) CountByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_tickets WHERE order_id = ?`, orderID).Scan(&n)
	return n, err
}

const ticketColumns = `id, order_id, event_id, ticket_number, qr_payload, status, checked_in_at, checked_in_by, created_at`

func scanTicket(row *sql.Row) (*model.EventTicket, error) {
	var t model.EventTicket
	var checkedInAt sql.NullTime
	var checkedInBy sql.NullString
	err := row.Scan(
		&t.ID, &t.OrderID, &t.EventID, &t.TicketNumber, &t.QRPayload,
		&t.Status, &checkedInAt, &checkedInBy, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if checkedInAt.Valid {
		ts := checkedInAt.Time
		t.CheckedInAt = &ts
	}
	if checkedInBy.Valid {
		op := checkedInBy.String
		t.CheckedInBy = &op
	}
	return &t, nil
}

// GetByID loads a single ticket.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.EventTicket, error) {
	return scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM event_tickets WHERE id = ?`, id))
}

// GetByIDTx loads a single ticket within a transaction.
func (r *TicketRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.EventTicket, error) {
	return scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM event_tickets WHERE id = ?`, id))
}

// MarkUsedTx performs the valid -> used transition, stamping the operator
// and timestamp in the same conditional update as the status check. A zero
// row count means the ticket was not valid; the caller re-reads to decide
// between the grace-window rescan and AlreadyUsed.
func (r *TicketRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, id uint64, operator string) (bool, error) {
	const q = `UPDATE event_tickets
	           SET status = ?, checked_in_at = UTC_TIMESTAMP(), checked_in_by = ?
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.TicketUsed, operator, id, model.TicketValid)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CancelByOrderTx cancels every still-valid ticket of an order. Used by
// the refund flow; used tickets are left untouched.
func (r *TicketRepo) CancelByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) (int64, error) {
	const q = `UPDATE event_tickets SET status = ? WHERE order_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.TicketCancelled, orderID, model.TicketValid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByOrder returns all tickets issued for an order.
func (r *TicketRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.EventTicket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM event_tickets WHERE order_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tickets []model.EventTicket
	for rows.Next() {
		var t model.EventTicket
		var checkedInAt sql.NullTime
		var checkedInBy sql.NullString
		if err := rows.Scan(
			&t.ID, &t.OrderID, &t.EventID, &t.TicketNumber, &t.QRPayload,
			&t.Status, &checkedInAt, &checkedInBy, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if checkedInAt.Valid {
			ts := checkedInAt.Time
			t.CheckedInAt = &ts
		}
		if checkedInBy.Valid {
			op := checkedInBy.String
			t.CheckedInBy = &op
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}
