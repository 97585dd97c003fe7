package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// migrations are idempotent and applied in order on every start.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user'
			CHECK (role IN ('admin', 'user', 'premium', 'guest')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		code VARCHAR(64) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		price NUMERIC(14, 2) NOT NULL CHECK (price >= 0),
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		category VARCHAR(100) NOT NULL DEFAULT '',
		thumbnails TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,

	`CREATE TABLE IF NOT EXISTS carts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// product_id carries no foreign key: a line may outlive its product and is reported as unavailable.
	`CREATE TABLE IF NOT EXISTS cart_items (
		cart_id UUID NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id UUID NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (cart_id, product_id)
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users(id),
		subtotal NUMERIC(14, 2) NOT NULL,
		discount NUMERIC(14, 2) NOT NULL DEFAULT 0,
		shipping NUMERIC(14, 2) NOT NULL DEFAULT 0,
		tax NUMERIC(14, 2) NOT NULL DEFAULT 0,
		total NUMERIC(14, 2) NOT NULL,
		promo_code VARCHAR(20),
		shipping_address JSONB NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL
			CHECK (status IN ('pending', 'processing', 'shipped', 'delivered', 'cancelled', 'refunded')),
		payment_method VARCHAR(32) NOT NULL
			CHECK (payment_method IN ('credit_card', 'debit_card', 'paypal', 'bank_transfer', 'cash_on_delivery')),
		payment_status VARCHAR(20) NOT NULL
			CHECK (payment_status IN ('pending', 'approved', 'rejected', 'refunded')),
		transaction_id VARCHAR(200) NOT NULL DEFAULT '',
		paid_at TIMESTAMPTZ,
		payment_details JSONB,
		tracking JSONB,
		cancellation JSONB,
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT orders_total_check CHECK (total = subtotal - discount + shipping + tax)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,

	`CREATE TABLE IF NOT EXISTS order_items (
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id UUID NOT NULL,
		code VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		thumbnail TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(14, 2) NOT NULL,
		subtotal NUMERIC(14, 2) NOT NULL,
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_product_id ON order_items(product_id)`,

	`CREATE TABLE IF NOT EXISTS order_status_history (
		id BIGSERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		actor UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, id)`,

	`CREATE TABLE IF NOT EXISTS order_sequences (
		period CHAR(4) PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db Execer, logger zerolog.Logger) error {
	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i, err)
		}
	}

	logger.Info().Int("statements", len(migrations)).Msg("database schema migrated")
	return nil
}
