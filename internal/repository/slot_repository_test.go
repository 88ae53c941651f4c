package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotRepositoryReserveSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec("UPDATE service_slots").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ReserveSeat(context.Background(), "slot-1"))

	mock.ExpectExec("UPDATE service_slots").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.ReserveSeat(context.Background(), "slot-1")
	assert.ErrorIs(t, err, sql.ErrNoRows, "a full slot reports no rows affected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCageRepositoryCompareAndSetStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCageRepository(db)

	mock.ExpectExec("UPDATE cages SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CompareAndSetStatus(context.Background(), "cage-1", "AVAILABLE", "OCCUPIED"))

	mock.ExpectExec("UPDATE cages SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.CompareAndSetStatus(context.Background(), "cage-1", "AVAILABLE", "OCCUPIED")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
