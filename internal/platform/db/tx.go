package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txContextKey struct{}

type txState struct {
	tx    pgx.Tx
	hooks []func(context.Context)
}

// WithTx executes fn within a transaction. When ctx already carries a transaction fn joins it
// and the outermost caller owns commit and rollback. Hooks registered through AfterCommit run
// once the outermost transaction has committed.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok {
		return fn(ctx, state.tx)
	}
	if pool == nil {
		return errors.New("platform/db: pool not configured")
	}

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	state := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txContextKey{}, state), tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	for _, hook := range state.hooks {
		hook(ctx)
	}
	return nil
}

// AfterCommit defers fn until the transaction carried by ctx commits. Without a transaction
// fn runs immediately. Hooks are dropped when the transaction rolls back.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if fn == nil {
		return
	}
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok {
		state.hooks = append(state.hooks, fn)
		return
	}
	fn(ctx)
}

// Conn returns the transaction carried by ctx, falling back to the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok {
		return state.tx
	}
	return pool
}

// IsUniqueViolation reports SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
