package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxRunner(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	countUsers := func(t *testing.T) int {
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n))
		return n
	}
	insertUser := func(email string) func(context.Context, pgx.Tx) error {
		return func(ctx context.Context, tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `INSERT INTO users (email, name) VALUES ($1, 'tx')`, email)
			return err
		}
	}

	t.Run("Commits on success", func(t *testing.T) {
		runner := NewTxRunner(pool, time.Second, zerolog.Nop())
		before := countUsers(t)

		require.NoError(t, runner.RunInTx(ctx, insertUser("commit@example.com")))

		assert.Equal(t, before+1, countUsers(t))
	})

	t.Run("Rolls back on error", func(t *testing.T) {
		runner := NewTxRunner(pool, time.Second, zerolog.Nop())
		before := countUsers(t)
		boom := errors.New("boom")

		err := runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := insertUser("rollback@example.com")(ctx, tx); err != nil {
				return err
			}
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, before, countUsers(t))
	})

	t.Run("Rolls back and re-panics", func(t *testing.T) {
		runner := NewTxRunner(pool, time.Second, zerolog.Nop())
		before := countUsers(t)

		assert.Panics(t, func() {
			_ = runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
				_ = insertUser("panic@example.com")(ctx, tx)
				panic("boom")
			})
		})

		assert.Equal(t, before, countUsers(t))
	})

	t.Run("Aborts after the timeout", func(t *testing.T) {
		runner := NewTxRunner(pool, 100*time.Millisecond, zerolog.Nop())
		before := countUsers(t)

		err := runner.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := insertUser("slow@example.com")(ctx, tx); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `SELECT pg_sleep(1)`)
			return err
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.Equal(t, before, countUsers(t))
	})
}

func TestNewTxRunner_DefaultTimeout(t *testing.T) {
	runner := NewTxRunner(nil, 0, zerolog.Nop()).(*txRunner)
	assert.Equal(t, DefaultTxTimeout, runner.timeout)
}
