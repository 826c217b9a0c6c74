package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/retry"
)

const maxSerializationAttempts = 3

type txContextKey struct{}

type txContext struct {
	tx        *sqlx.Tx
	isolation sql.IsolationLevel
}

var (
	ErrAlreadyInTx           = errors.New("already executing in existing db tx")
	ErrInsufficientIsolation = errors.New("existing db tx has insufficient isolation")
)

// ExecuteTxWithinCtx runs fn in a new transaction carried by the context it
// receives. Store calls made with that context join the transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Serialization
// failures rerun fn from the start.
func ExecuteTxWithinCtx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(context.Context) error) error {
	if _, ok := txFromCtx(ctx); ok {
		return ErrAlreadyInTx
	}

	isolation = normalizeIsolation(isolation)

	_, err := retry.Retry(
		func() error {
			return runTx(ctx, db, isolation, func(tx *sqlx.Tx) error {
				return fn(context.WithValue(ctx, txContextKey{}, &txContext{tx: tx, isolation: isolation}))
			})
		},
		retry.Limit(maxSerializationAttempts),
		func(_ uint, err error) bool { return IsSerializationFailure(err) },
	)
	return err
}

// ExecuteInTx runs fn in the transaction carried by ctx when there is one, and
// in a new transaction otherwise. Only a new transaction is committed or rolled
// back here.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	isolation = normalizeIsolation(isolation)

	existing, ok := txFromCtx(ctx)
	if !ok {
		return runTx(ctx, db, isolation, fn)
	}

	if existing.isolation < isolation {
		return ErrInsufficientIsolation
	}
	return fn(existing.tx)
}

func runTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		// Rollback releases the connection back to the pool
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrap(rollbackErr, "failed to rollback transaction")
		}
		return err
	}
	return tx.Commit()
}

func txFromCtx(ctx context.Context) (*txContext, bool) {
	existing, ok := ctx.Value(txContextKey{}).(*txContext)
	return existing, ok
}

// Postgres defaults to read committed
func normalizeIsolation(isolation sql.IsolationLevel) sql.IsolationLevel {
	if isolation == sql.LevelDefault {
		return sql.LevelReadCommitted
	}
	return isolation
}
