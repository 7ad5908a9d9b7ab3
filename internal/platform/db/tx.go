package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

// DBTxKey carries an open transaction through a request context so that
// repository calls within one unit of work share it.
const DBTxKey contextKey = "db_tx"

// WithTx begins a transaction on the pool and returns it along with a context
// that carries it. The caller owns the transaction and must commit or roll
// back.
func WithTx(ctx context.Context, pool *pgxpool.Pool) (pgx.Tx, context.Context, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, ctx, err
	}
	return tx, context.WithValue(ctx, DBTxKey, tx), nil
}

// TxFromContext retrieves the transaction from context, or nil when the
// caller is not inside one.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
