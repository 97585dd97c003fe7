package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DefaultTxTimeout bounds a transaction when no timeout is configured.
const DefaultTxTimeout = 5 * time.Second

// txRunner implements TxRunner on a connection pool.
type txRunner struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  zerolog.Logger
}

// NewTxRunner creates a TxRunner whose transactions are aborted after timeout.
func NewTxRunner(pool *pgxpool.Pool, timeout time.Duration, logger zerolog.Logger) TxRunner {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return &txRunner{
		pool:    pool,
		timeout: timeout,
		logger:  logger.With().Str("repository", "tx").Logger(),
	}
}

// RunInTx begins a read-committed transaction, calls fn and commits.
func (r *txRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.rollback(ctx, tx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		r.rollback(ctx, tx)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("transaction timed out after %s: %w", r.timeout, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *txRunner) rollback(ctx context.Context, tx pgx.Tx) {
	// The caller's deadline may already have passed; the rollback still has to reach the server.
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}

// queryOne runs sql and maps the single resulting row onto T by column name.
// It returns nil, nil when there are no rows.
func queryOne[T any](ctx context.Context, q Querier, sql string, args ...any) (*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

// queryAll runs sql and maps every resulting row onto T by column name.
func queryAll[T any](ctx context.Context, q Querier, sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}
