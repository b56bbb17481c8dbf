package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// PackageRepo provides data access to ticket_packages and package_holds.
// Packages are anonymous capacity counters, so holds cannot be stamped on
// an inventory row the way seat holds are; instead each hold is its own
// row with a quantity and an expiry, and availability is computed as
// quantity_available - quantity_sold - sum(active holds) while the package
// row is locked.
type PackageRepo struct {
	db *sql.DB
}

// NewPackageRepo returns a new PackageRepo bound to the given database.
func NewPackageRepo(db *sql.DB) *PackageRepo { return &PackageRepo{db: db} }

// GetForUpdateTx loads a package and locks its row for the duration of the
// transaction. Concurrent reservation attempts on the same package
// serialize here.
func (r *PackageRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.TicketPackage, error) {
	const q = `SELECT id, event_id, name, price_cents, quantity_available, quantity_sold
	           FROM ticket_packages WHERE id = ? FOR UPDATE`
	var p model.TicketPackage
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.EventID, &p.Name, &p.PriceCents, &p.QuantityAvailable, &p.QuantitySold,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationConflict
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActiveHeldQuantityTx sums the quantities of all unexpired holds on a
// package. Must be called with the package row locked.
func (r *PackageRepo) ActiveHeldQuantityTx(ctx context.Context, tx *sql.Tx, packageID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(quantity), 0) FROM package_holds
	           WHERE package_id = ? AND expires_at > UTC_TIMESTAMP()`
	var held uint32
	if err := tx.QueryRowContext(ctx, q, packageID).Scan(&held); err != nil {
		return 0, err
	}
	return held, nil
}

// CreateHoldTx records a quantity hold against a package under the given
// token.
func (r *PackageRepo) CreateHoldTx(ctx context.Context, tx *sql.Tx, token string, packageID uint64, quantity uint32, expiresAt time.Time) error {
	const q = `INSERT INTO package_holds (hold_token, package_id, quantity, expires_at) VALUES (?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, token, packageID, quantity, expiresAt.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// PackageHold is a quantity claim on a package, scanned back when an order
// is created or a hold is finalized.
type PackageHold struct {
	PackageID  uint64
	Quantity   uint32
	PriceCents uint32
	EventID    uint64
}

// ActiveHoldsByTokenTx returns the unexpired package holds carried by a
// hold token, joined with the package for pricing.
func (r *PackageRepo) ActiveHoldsByTokenTx(ctx context.Context, tx *sql.Tx, token string) ([]PackageHold, error) {
	const q = `SELECT ph.package_id, ph.quantity, tp.price_cents, tp.event_id
	           FROM package_holds ph
	           JOIN ticket_packages tp ON tp.id = ph.package_id
	           WHERE ph.hold_token = ? AND ph.expires_at > UTC_TIMESTAMP()`
	rows, err := tx.QueryContext(ctx, q, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []PackageHold
	for rows.Next() {
		var h PackageHold
		if err := rows.Scan(&h.PackageID, &h.Quantity, &h.PriceCents, &h.EventID); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}

// MarkSoldTx converts a hold into sold quantity. The guard keeps
// quantity_sold from ever exceeding quantity_available even if the hold
// bookkeeping were somehow off; a zero match means the availability
// invariant would break and the caller must roll back.
func (r *PackageRepo) MarkSoldTx(ctx context.Context, tx *sql.Tx, packageID uint64, quantity uint32) error {
	const q = `UPDATE ticket_packages
	           SET quantity_sold = quantity_sold + ?
	           WHERE id = ? AND quantity_sold + ? <= quantity_available`
	res, err := tx.ExecContext(ctx, q, quantity, packageID, quantity)
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

// ReleaseSoldTx gives sold quantity back to a package. Used only by the
// explicit refund-and-release flow.
func (r *PackageRepo) ReleaseSoldTx(ctx context.Context, tx *sql.Tx, packageID uint64, quantity uint32) error {
	const q = `UPDATE ticket_packages
	           SET quantity_sold = quantity_sold - ?
	           WHERE id = ? AND quantity_sold >= ?`
	_, err := tx.ExecContext(ctx, q, quantity, packageID, quantity)
	return err
}

// DeleteHoldsByTokenTx removes all package holds carried by a token,
// whether expired or not. Called on release, finalize and failure paths.
func (r *PackageRepo) DeleteHoldsByTokenTx(ctx context.Context, tx *sql.Tx, token string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM package_holds WHERE hold_token = ?`, token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepExpiredTx deletes every lapsed package hold. Availability is
// derived from unexpired holds only, so the delete is pure housekeeping
// and safe to run concurrently with reservation attempts.
func (r *PackageRepo) SweepExpiredTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM package_holds WHERE expires_at <= UTC_TIMESTAMP()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByEvent returns the packages of an event together with the quantity
// currently locked up in active holds, for the availability view.
func (r *PackageRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketPackage, map[uint64]uint32, error) {
	const q = `SELECT id, event_id, name, price_cents, quantity_available, quantity_sold
	           FROM ticket_packages WHERE event_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var packages []model.TicketPackage
	for rows.Next() {
		var p model.TicketPackage
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.PriceCents, &p.QuantityAvailable, &p.QuantitySold); err != nil {
			return nil, nil, err
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	held := make(map[uint64]uint32)
	const hq = `SELECT ph.package_id, COALESCE(SUM(ph.quantity), 0)
	            FROM package_holds ph
	            JOIN ticket_packages tp ON tp.id = ph.package_id
	            WHERE tp.event_id = ? AND ph.expires_at > UTC_TIMESTAMP()
	            GROUP BY ph.package_id`
	hrows, err := r.db.QueryContext(ctx, hq, eventID)
	if err != nil {
		return nil, nil, err
	}
	defer hrows.Close()
	for hrows.Next() {
		var id uint64
		var qty uint32
		if err := hrows.Scan(&id, &qty); err != nil {
			return nil, nil, err
		}
		held[id] = qty
	}
	if err := hrows.Err(); err != nil {
		return nil, nil, err
	}
	return packages, held, nil
}
