package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL testcontainer, applies the schema and returns a pool.
// The container is terminated when the test ends.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, pool, zerolog.Nop()))

	t.Cleanup(func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	})

	return pool
}

// seedUser inserts a user and returns its id.
func seedUser(t *testing.T, pool *pgxpool.Pool, email string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, name, role) VALUES ($1, $2, 'user') RETURNING id`,
		email, "Test "+email,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// seedProduct inserts an active product and returns its id.
func seedProduct(t *testing.T, pool *pgxpool.Pool, code string, price int64, stock int) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (code, title, price, stock, category, thumbnails)
		VALUES ($1, $2, $3, $4, 'test', $5)
		RETURNING id`,
		code, "Product "+code, decimal.NewFromInt(price), stock,
		[]string{"https://cdn.example.com/" + code + ".jpg"},
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// seedCart creates a cart for userID holding quantities per product.
func seedCart(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, lines map[uuid.UUID]int) uuid.UUID {
	t.Helper()

	ctx := context.Background()

	var cartID uuid.UUID
	err := pool.QueryRow(ctx, `INSERT INTO carts (user_id) VALUES ($1) RETURNING id`, userID).Scan(&cartID)
	require.NoError(t, err)

	for productID, qty := range lines {
		_, err := pool.Exec(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)`,
			cartID, productID, qty,
		)
		require.NoError(t, err)
	}

	return cartID
}

// newTestOrder builds a pending order for userID with one line of product.
func newTestOrder(userID uuid.UUID, product *model.Product, qty int, at time.Time) *model.Order {
	item := model.NewLineItem(product, qty)
	shipping := decimal.NewFromInt(5000)
	tax := item.Subtotal.Mul(decimal.RequireFromString("0.19")).Round(0)

	order := &model.Order{
		UserID:   userID,
		Items:    []model.LineItem{item},
		Subtotal: item.Subtotal,
		Discount: decimal.Zero,
		Shipping: shipping,
		Tax:      tax,
		Total:    item.Subtotal.Add(shipping).Add(tax),
		ShippingAddress: model.ShippingAddress{
			Street:  "1 Main St",
			City:    "Springfield",
			State:   "IL",
			Zip:     "62701",
			Country: "US",
			Phone:   "+1-555-0100",
		},
		Status:    model.OrderStatusPending,
		Payment:   model.Payment{Method: model.PaymentMethodCreditCard, Status: model.PaymentStatusPending},
		CreatedAt: at,
		UpdatedAt: at,
	}
	order.AppendStatus(model.OrderStatusPending, "order created", &userID, at)
	return order
}
