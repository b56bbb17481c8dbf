// Package reservation implements time-boxed holds on event inventory.
// A hold is identified by a crypto-random token handed back to the caller;
// granting, releasing and sweeping are all expressed as conditional
// updates so concurrent buyers can never end up holding the same unit.
package reservation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/event-ticketing/internal/repository"
)

// PackageQuantity asks for a number of units from an anonymous capacity
// package.
type PackageQuantity struct {
	PackageID uint64 `json:"package_id"`
	Quantity  uint32 `json:"quantity"`
}

// Items describes what a single reservation attempt wants to hold:
// explicit seats, package quantities, or a mix of both.
type Items struct {
	SeatIDs  []uint64          `json:"seat_ids"`
	Packages []PackageQuantity `json:"packages"`
}

func (it Items) empty() bool { return len(it.SeatIDs) == 0 && len(it.Packages) == 0 }

// Hold is the handle returned by a successful reservation. The token must
// be presented to release the hold or to create an order from it.
type Hold struct {
	Token     string    `json:"token"`
	EventID   uint64    `json:"event_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager grants and reclaims holds. All methods open their own
// transaction; a failure anywhere rolls the whole attempt back so no
// partial holds are ever left behind.
type Manager struct {
	db       *sql.DB
	seats    *repository.SeatRepo
	packages *repository.PackageRepo
}

// NewManager constructs a Manager from the shared DB handle.
func NewManager(db *sql.DB, seats *repository.SeatRepo, packages *repository.PackageRepo) *Manager {
	return &Manager{db: db, seats: seats, packages: packages}
}

// newToken generates the opaque hold token. 32 random bytes hex-encoded,
// same shape the rest of the system uses for correlation tokens.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Reserve grants a hold on every requested unit or fails with
// ErrReservationConflict without holding anything. Expired holds touching
// the requested units are reclaimed opportunistically inside the same
// transaction before availability is checked.
func (m *Manager) Reserve(ctx context.Context, eventID uint64, items Items, ttl time.Duration) (*Hold, error) {
	if items.empty() {
		return nil, fmt.Errorf("reservation: no items requested")
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(ttl)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lazy sweep: reclaim lapsed holds before checking availability so a
	// seat abandoned seconds ago can be sold again immediately.
	if _, err := m.seats.SweepExpiredTx(ctx, tx); err != nil {
		return nil, err
	}
	if _, err := m.packages.SweepExpiredTx(ctx, tx); err != nil {
		return nil, err
	}

	if len(items.SeatIDs) > 0 {
		affected, err := m.seats.ReserveTx(ctx, tx, eventID, items.SeatIDs, token, expiresAt)
		if err != nil {
			return nil, err
		}
		if affected != int64(len(items.SeatIDs)) {
			// At least one seat was not available; the rollback undoes the
			// rows that did match, keeping the attempt all-or-nothing.
			return nil, repository.ErrReservationConflict
		}
	}

	for _, pq := range items.Packages {
		if pq.Quantity == 0 {
			return nil, fmt.Errorf("reservation: zero quantity for package %d", pq.PackageID)
		}
		pkg, err := m.packages.GetForUpdateTx(ctx, tx, pq.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg.EventID != eventID {
			return nil, repository.ErrReservationConflict
		}
		held, err := m.packages.ActiveHeldQuantityTx(ctx, tx, pq.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg.QuantitySold+held+pq.Quantity > pkg.QuantityAvailable {
			return nil, repository.ErrReservationConflict
		}
		if err := m.packages.CreateHoldTx(ctx, tx, token, pq.PackageID, pq.Quantity, expiresAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &Hold{Token: token, EventID: eventID, ExpiresAt: expiresAt}, nil
}

// Release gives back every unit still held under the token. A token whose
// seats have expired and been re-reserved by another buyer releases
// nothing for those seats; ErrHoldNotFound is returned when the token no
// longer holds anything at all.
func (m *Manager) Release(ctx context.Context, token string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seatCount, err := m.seats.ReleaseByTokenTx(ctx, tx, token)
	if err != nil {
		return err
	}
	holdCount, err := m.packages.DeleteHoldsByTokenTx(ctx, tx, token)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	if seatCount == 0 && holdCount == 0 {
		return repository.ErrHoldNotFound
	}
	return nil
}

// SweepExpired reclaims every lapsed hold across all events and returns
// how many units were freed. Safe to call concurrently with Reserve and
// Release because each statement checks expiry and status itself.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	seats, err := m.seats.SweepExpiredTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	holds, err := m.packages.SweepExpiredTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return seats + holds, nil
}

// RunSweeper periodically reclaims expired holds until the context is
// cancelled. Launched from main as a background goroutine.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			freed, err := m.SweepExpired(ctx)
			if err != nil {
				log.Printf("reservation-sweeper: sweep failed: %v", err)
				continue
			}
			if freed > 0 {
				log.Printf("reservation-sweeper: reclaimed %d expired holds", freed)
			}
		}
	}
}
