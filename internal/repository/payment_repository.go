package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// PaymentRepo provides data access to the payments table. Webhook
// processing locks the payment row by transaction reference and applies
// transitions as conditional updates keyed on the current status; that
// combination is what makes duplicate and out-of-order gateway callbacks
// collapse into no-ops.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateTx inserts a new pending payment and populates the generated ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (order_id, gateway, transaction_reference, amount_cents, currency, status)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.OrderID, p.Gateway, p.TransactionReference, p.AmountCents, p.Currency, p.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

const paymentColumns = `id, order_id, gateway, transaction_reference, amount_cents, currency, status, gateway_response, paid_at, refund_amount_cents, created_at, updated_at`

func scanPayment(row *sql.Row) (*model.Payment, error) {
	var p model.Payment
	var gatewayResponse sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Gateway, &p.TransactionReference, &p.AmountCents, &p.Currency,
		&p.Status, &gatewayResponse, &paidAt, &p.RefundAmountCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if gatewayResponse.Valid {
		s := gatewayResponse.String
		p.GatewayResponse = &s
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}

// GetByReferenceForUpdateTx looks up a payment by its transaction
// reference and locks the row. Concurrent deliveries of the same webhook
// serialize on this lock; the loser then sees a terminal status and
// no-ops.
func (r *PaymentRepo) GetByReferenceForUpdateTx(ctx context.Context, tx *sql.Tx, reference string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_reference = ? FOR UPDATE`
	return scanPayment(tx.QueryRowContext(ctx, q, reference))
}

// GetByIDForUpdateTx loads a payment by id with a row lock. The refund
// flow holds this lock across eligibility checks and the gateway call so
// only one refund per payment is ever in flight.
func (r *PaymentRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Payment, error) {
	return scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ? FOR UPDATE`, id))
}

// MarkCompletedTx transitions a pending payment to completed, recording
// the raw gateway payload and the paid_at timestamp. Returns
// ErrPaymentNotFound when the payment is no longer pending.
func (r *PaymentRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, id uint64, gatewayResponse string) error {
	const q = `UPDATE payments
	           SET status = ?, gateway_response = ?, paid_at = UTC_TIMESTAMP(), updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	return r.transition(ctx, tx, q, model.PaymentCompleted, gatewayResponse, id, model.PaymentPending)
}

// MarkFailedTx transitions a pending payment to failed.
func (r *PaymentRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64, gatewayResponse string) error {
	const q = `UPDATE payments
	           SET status = ?, gateway_response = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	return r.transition(ctx, tx, q, model.PaymentFailed, gatewayResponse, id, model.PaymentPending)
}

// MarkRefundedTx transitions a completed payment to refunded and records
// the refunded amount.
func (r *PaymentRepo) MarkRefundedTx(ctx context.Context, tx *sql.Tx, id uint64, amountCents uint32) error {
	const q = `UPDATE payments
	           SET status = ?, refund_amount_cents = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.PaymentRefunded, amountCents, id, model.PaymentCompleted)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepo) transition(ctx context.Context, tx *sql.Tx, query, toStatus, gatewayResponse string, id uint64, fromStatus string) error {
	res, err := tx.ExecContext(ctx, query, toStatus, gatewayResponse, id, fromStatus)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
