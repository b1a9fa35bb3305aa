package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransactor(t *testing.T) (*Transactor, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	tr := NewTransactor(sqlDB)
	tr.backoff = time.Millisecond
	return tr, mock
}

func TestInTx_Commit(t *testing.T) {
	tr, mock := newTestTransactor(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE beds").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tr.InTx(context.Background(), func(q DBTX) error {
		_, err := q.ExecContext(context.Background(), "UPDATE beds SET patient_id = NULL WHERE id = $1", 3)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollbackOnError(t *testing.T) {
	tr, mock := newTestTransactor(t)
	boom := errors.New("audit write failed")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tr.InTx(context.Background(), func(q DBTX) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RetriesSerializationFailure(t *testing.T) {
	tr, mock := newTestTransactor(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := tr.InTx(context.Background(), func(q DBTX) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("update bed: %w", &pq.Error{Code: "40001"})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_GivesUpAfterMaxAttempts(t *testing.T) {
	tr, mock := newTestTransactor(t)

	for i := 0; i < DefaultMaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	calls := 0
	err := tr.InTx(context.Background(), func(q DBTX) error {
		calls++
		return &pq.Error{Code: "40P01"}
	})

	assert.True(t, IsRetryable(err))
	assert.Equal(t, DefaultMaxAttempts, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))

	badUUID := fmt.Errorf("get: %w", &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "x"`})
	assert.True(t, IsInvalidTextRepresentation(badUUID))
	assert.True(t, IsNotFound(badUUID))
	assert.True(t, IsNotFound(fmt.Errorf("scan: %w", sql.ErrNoRows)))
	assert.False(t, IsNotFound(&pq.Error{Code: "23505"}))
}
