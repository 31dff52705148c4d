package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryRecoversFromDeadlock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// First attempt hits a deadlock and rolls back, second commits.
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	tm := NewTransactionManager(db)
	attempts := 0
	err = tm.WithRetry(context.Background(), func(txCtx context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("Error 1213: Deadlock found when trying to get lock")
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tm := NewTransactionManager(db)
	attempts := 0
	failure := errors.New("duplicate entry for key 'PRIMARY'")
	err = tm.WithRetry(context.Background(), func(txCtx context.Context) error {
		attempts++
		return failure
	}, 3)

	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()

	tm := NewTransactionManager(db)
	attempts := 0
	err = tm.WithRetry(context.Background(), func(txCtx context.Context) error {
		attempts++
		return errors.New("Error 1205: Lock wait timeout exceeded")
	}, 2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryJoinsAmbientTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tm := NewTransactionManager(db)
	err = tm.RunInTransaction(context.Background(), func(txCtx context.Context) error {
		// The nested call must reuse the outer transaction, not begin a new one.
		return tm.WithRetry(txCtx, func(innerCtx context.Context) error {
			assert.Equal(t, ExtractTx(txCtx), ExtractTx(innerCtx))
			return nil
		}, 3)
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
