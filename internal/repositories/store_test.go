package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	plantID, itemID := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM current_stock`).
		WithArgs([]uuid.UUID{plantID}, []uuid.UUID{itemID}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err = NewStore(mock).WithinTx(context.Background(), func(tx Store) error {
		_, err := tx.Stock().DeleteFor(context.Background(), []uuid.UUID{plantID}, []uuid.UUID{itemID})
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = NewStore(mock).WithinTx(context.Background(), func(tx Store) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err = NewStore(mock).WithinTx(context.Background(), func(tx Store) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
