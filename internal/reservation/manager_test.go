package reservation

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/repository"
)

func newTestManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManager(db, repository.NewSeatRepo(db), repository.NewPackageRepo(db)), mock
}

func expectSweeps(mock sqlmock.Sqlmock) {
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM package_holds").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestReserveSeatsSuccess(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	expectSweeps(mock)
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	hold, err := m.Reserve(context.Background(), 3, Items{SeatIDs: []uint64{11, 12}}, 5*time.Minute)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), hold.Token)
	assert.Equal(t, uint64(3), hold.EventID)
	assert.WithinDuration(t, time.Now().UTC().Add(5*time.Minute), hold.ExpiresAt, 2*time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservePartialSeatMatchRollsBack(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	expectSweeps(mock)
	// only one of two requested seats was still available
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	_, err := m.Reserve(context.Background(), 3, Items{SeatIDs: []uint64{11, 12}}, 5*time.Minute)
	assert.ErrorIs(t, err, repository.ErrReservationConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservePackageInsufficientQuantity(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	expectSweeps(mock)
	mock.ExpectQuery("SELECT .+ FROM ticket_packages WHERE id").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_id", "name", "price_cents", "quantity_available", "quantity_sold",
		}).AddRow(5, 3, "GA", 2500, 10, 8))
	mock.ExpectQuery("SELECT COALESCE").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"held"}).AddRow(2))
	mock.ExpectRollback()

	// 8 sold + 2 held + 1 requested > 10 available
	_, err := m.Reserve(context.Background(), 3, Items{Packages: []PackageQuantity{{PackageID: 5, Quantity: 1}}}, 5*time.Minute)
	assert.ErrorIs(t, err, repository.ErrReservationConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservePackageWrongEvent(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	expectSweeps(mock)
	mock.ExpectQuery("SELECT .+ FROM ticket_packages WHERE id").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_id", "name", "price_cents", "quantity_available", "quantity_sold",
		}).AddRow(5, 99, "GA", 2500, 10, 0))
	mock.ExpectRollback()

	_, err := m.Reserve(context.Background(), 3, Items{Packages: []PackageQuantity{{PackageID: 5, Quantity: 1}}}, 5*time.Minute)
	assert.ErrorIs(t, err, repository.ErrReservationConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRejectsEmptyRequest(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Reserve(context.Background(), 3, Items{}, 5*time.Minute)
	assert.Error(t, err)
}

func TestReleaseUnknownTokenReturnsNotFound(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM package_holds").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := m.Release(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, repository.ErrHoldNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepExpiredCountsBothKinds(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM package_holds").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	freed, err := m.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), freed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
