package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}

func TestAddRegisteredTxCapacityGuard(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewEventRepo(db)

	mock.ExpectBegin()
	// capacity would be exceeded: the guarded update matches no row
	mock.ExpectExec("UPDATE events").
		WithArgs(uint32(5), uint64(3), uint32(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.AddRegisteredTx(context.Background(), tx, 3, 5)
	assert.ErrorIs(t, err, ErrReservationConflict)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPaymentTxIsSetOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderRepo(db)

	mock.ExpectBegin()
	// payment_id already set: the IS NULL guard matches no row
	mock.ExpectExec("UPDATE ticket_orders SET payment_id").
		WithArgs(uint64(21), uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.SetPaymentTx(context.Background(), tx, 10, 21)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRefundedTxRequiresCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPaymentRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.MarkRefundedTx(context.Background(), tx, 20, 1000)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkUsedTxReportsConditionalResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTicketRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE event_tickets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE event_tickets").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	used, err := repo.MarkUsedTx(context.Background(), tx, 7, "gate-1")
	require.NoError(t, err)
	assert.True(t, used)
	used, err = repo.MarkUsedTx(context.Background(), tx, 7, "gate-1")
	require.NoError(t, err)
	assert.False(t, used)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
