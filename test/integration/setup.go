package integration

import (
	"context"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, a connection pool and the schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	// Enough connections for the concurrent checkout tests.
	dbConfig := config.DatabaseConfig{
		MaxConnections:  20,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPoolFromConnString(ctx, connStr, dbConfig, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedUser inserts a user with role and returns its id.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email, role string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, name, role) VALUES ($1, $2, $3) RETURNING id`,
		email, "Test "+email, role,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return id
}

// SeedProduct inserts an active product and returns its id.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, code string, price int64, stock int) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (code, title, price, stock, category) VALUES ($1, $2, $3, $4, 'test') RETURNING id`,
		code, "Test Product "+code, decimal.NewFromInt(price), stock,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed product %s: %v", code, err)
	}
	return id
}

// SeedCart replaces the user's cart with lines.
func SeedCart(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, lines map[uuid.UUID]int) {
	t.Helper()

	ctx := context.Background()

	var cartID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, userID).Scan(&cartID)
	if err != nil {
		t.Fatalf("failed to seed cart: %v", err)
	}

	if _, err := pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		t.Fatalf("failed to clear cart: %v", err)
	}

	for productID, qty := range lines {
		_, err := pool.Exec(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)`,
			cartID, productID, qty,
		)
		if err != nil {
			t.Fatalf("failed to seed cart line: %v", err)
		}
	}
}

// Stock returns the current stock of a product.
func Stock(t *testing.T, pool *pgxpool.Pool, productID uuid.UUID) int {
	t.Helper()

	var stock int
	if err := pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()

	var n int
	if err := pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+pgx.Identifier{table}.Sanitize()).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// CleanupDB removes all data from the test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE order_status_history, order_items, orders, order_sequences, cart_items, carts, products, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to clean database: %v", err)
	}
}
