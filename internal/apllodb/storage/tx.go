package storage

import (
	"context"
	"database/sql"

	"github.com/cenkalti/backoff/v5"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
)

// Tx is one open database transaction, the handle a session's
// SessionWithTx state carries. Every VTableRepository exposed
// through a Tx shares the same *sql.Tx, so all reads/writes within it are
// atomic per SQLite's single-writer model.
type Tx struct {
	tx     *sql.Tx
	dbName string
}

// BeginTx opens a transaction against f, retrying with exponential backoff
// while SQLite reports the file busy, capped at the file's configured
// busy timeout — the session manager's concrete implementation of
// the policy of "wait up to the deadlock timeout, then fail with
// DeadlockDetected".
func BeginTx(ctx context.Context, f *File, dbName string) (*Tx, error) {
	op := func() (*sql.Tx, error) {
		tx, err := f.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusyErr(err) {
				return nil, err
			}
			return nil, backoff.Permanent(classify(err))
		}
		return tx, nil
	}

	tx, err := backoff.Retry(ctx, op,
		backoff.WithMaxElapsedTime(f.busyTimeout),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		if ae, ok := err.(*apperrors.Error); ok {
			return nil, ae
		}
		return nil, apperrors.Wrap(apperrors.DeadlockDetected, err, "timed out waiting for database lock")
	}
	return &Tx{tx: tx, dbName: dbName}, nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return classify(err)
	}
	return nil
}

// VTables returns a repository scoped to this transaction's underlying
// *sql.Tx — storage operations issued through it participate in the open
// transaction.
func (t *Tx) VTables() *VTableRepository {
	return NewVTableRepository(t.tx, t.dbName)
}
