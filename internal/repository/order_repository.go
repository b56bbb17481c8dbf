package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// OrderRepo provides CRUD operations for ticket_orders and order_items.
// Status transitions always name the expected current status in the WHERE
// clause so an order converges to exactly one terminal state.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// CreateTx inserts a new pending order and populates the generated ID on
// the provided record. The originating hold token is stored alongside so
// webhook processing can later finalize or release exactly the units the
// buyer held. The caller must commit or roll back the transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.TicketOrder, holdToken string) error {
	const q = `INSERT INTO ticket_orders (buyer_id, event_id, final_amount_cents, currency, status, payment_status, hold_token)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, o.BuyerID, o.EventID, o.FinalAmountCents, o.Currency, o.Status, o.PaymentStatus, holdToken)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// CreateItemsBulkTx inserts the order's line items in a single statement.
// Passing an empty slice has no effect and returns nil.
func (r *OrderRepo) CreateItemsBulkTx(ctx context.Context, tx *sql.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, seat_id, package_id, quantity, unit_price_cents) VALUES `
	args := make([]interface{}, 0, len(items)*5)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, it.OrderID, it.SeatID, it.PackageID, it.Quantity, it.UnitPriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// SetPaymentTx records the 1:1 payment reference on the order. The
// payment_id guard makes the association set-once.
func (r *OrderRepo) SetPaymentTx(ctx context.Context, tx *sql.Tx, orderID, paymentID uint64) error {
	const q = `UPDATE ticket_orders SET payment_id = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND payment_id IS NULL`
	res, err := tx.ExecContext(ctx, q, paymentID, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// TransitionTx moves an order from one status to another, updating the
// payment_status alongside. It returns ErrOrderNotFound when the order is
// not currently in fromStatus, which callers treat as an idempotent no-op
// or a hard failure depending on context.
func (r *OrderRepo) TransitionTx(ctx context.Context, tx *sql.Tx, orderID uint64, fromStatus, toStatus, paymentStatus string) error {
	const q = `UPDATE ticket_orders
	           SET status = ?, payment_status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, toStatus, paymentStatus, orderID, fromStatus)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row *sql.Row) (*model.TicketOrder, error) {
	var o model.TicketOrder
	var paymentID sql.NullInt64
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.EventID, &o.FinalAmountCents, &o.Currency,
		&o.Status, &o.PaymentStatus, &paymentID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		id := uint64(paymentID.Int64)
		o.PaymentID = &id
	}
	return &o, nil
}

const orderColumns = `id, buyer_id, event_id, final_amount_cents, currency, status, payment_status, payment_id, created_at, updated_at`

// GetByID loads a single order.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.TicketOrder, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM ticket_orders WHERE id = ?`, id))
}

// GetByIDTx loads a single order within a transaction, locking the row so
// webhook processing and refunds serialize per order.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.TicketOrder, error) {
	return scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM ticket_orders WHERE id = ? FOR UPDATE`, id))
}

// ItemsByOrderTx returns the line items of an order.
func (r *OrderRepo) ItemsByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]model.OrderItem, error) {
	const q = `SELECT id, order_id, seat_id, package_id, quantity, unit_price_cents
	           FROM order_items WHERE order_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		var seatID, packageID sql.NullInt64
		if err := rows.Scan(&it.ID, &it.OrderID, &seatID, &packageID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		if seatID.Valid {
			id := uint64(seatID.Int64)
			it.SeatID = &id
		}
		if packageID.Valid {
			id := uint64(packageID.Int64)
			it.PackageID = &id
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// HoldTokenByOrderTx returns the hold token the order was created from.
// The token is kept on the order row so the webhook path can finalize or
// release exactly the units the buyer held.
func (r *OrderRepo) HoldTokenByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) (string, error) {
	var token sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT hold_token FROM ticket_orders WHERE id = ?`, orderID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return token.String, nil
}
