package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// DefaultMaxAttempts bounds retries of transactions aborted by serialization
// failures or deadlocks.
const DefaultMaxAttempts = 5

// TxRunner runs fn inside a single database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(q DBTX) error) error
}

// Transactor commits when fn returns nil and rolls back otherwise.
type Transactor struct {
	db          *sql.DB
	maxAttempts int
	backoff     time.Duration
}

func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db, maxAttempts: DefaultMaxAttempts, backoff: 25 * time.Millisecond}
}

var _ TxRunner = (*Transactor)(nil)

func (t *Transactor) InTx(ctx context.Context, fn func(q DBTX) error) error {
	var err error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		err = t.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("transaction aborted, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * t.backoff):
		}
	}
	return err
}

func (t *Transactor) runOnce(ctx context.Context, fn func(q DBTX) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Postgres SQLSTATE codes.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeInvalidTextRepr      = "22P02"
)

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == codeUniqueViolation
	}
	return false
}

// IsInvalidTextRepresentation reports whether Postgres rejected a parameter
// it could not parse, such as an id that is not a uuid.
func IsInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == codeInvalidTextRepr
	}
	return false
}

// IsNotFound reports whether a lookup by id matched nothing. A malformed id
// cannot match a row either.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || IsInvalidTextRepresentation(err)
}
