package repository

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the statement surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner runs a unit of work inside a single database transaction.
type TxRunner interface {
	// RunInTx begins a transaction, calls fn and commits if fn returns nil.
	// Any error from fn, or expiry of the transaction timeout, rolls the transaction back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetAll retrieves products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)

	// LockByID reads a product and holds its row lock until tx ends. Returns nil when it does not exist.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Product, error)

	// AdjustStock adds delta to the product's stock within tx and returns the updated product.
	// The stock never goes below zero.
	AdjustStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (*model.Product, error)
}

// CartRepository defines the interface for cart data access operations.
type CartRepository interface {
	// GetByUserID retrieves the user's cart. Returns nil when the user has none.
	GetByUserID(ctx context.Context, q Querier, userID uuid.UUID, opts model.CartQueryOptions) (*model.Cart, error)

	// LockByUserID reads the user's cart with its lines and holds the cart row lock until tx ends.
	LockByUserID(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*model.Cart, error)

	// RemoveLines deletes the given products from the cart and returns what is left.
	RemoveLines(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productIDs []uuid.UUID) (*model.Cart, error)
}

// UserRepository defines the read access the order subsystem needs to accounts.
type UserRepository interface {
	// GetByID retrieves a user. Returns nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create assigns an order number and inserts the order, its items and its history within tx.
	Create(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// GetByID retrieves an order with its items and history. Returns nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID, opts model.OrderQueryOptions) (*model.Order, error)

	// LockByID reads an order and holds its row lock until tx ends. Returns nil when it does not exist.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// ListByUser pages through a user's orders, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, status *model.OrderStatus, page, pageSize int) (*model.OrderPage, error)

	// List pages through all orders matching filter, newest first.
	List(ctx context.Context, filter model.OrderFilter, page, pageSize int) (*model.OrderPage, error)

	// Update persists the mutable parts of an order within tx.
	Update(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// AppendStatus adds one entry to the order's status history within tx.
	AppendStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.StatusEntry) error

	// Stats aggregates orders created in [from, to). Nil bounds are open.
	Stats(ctx context.Context, from, to *time.Time) (*model.OrderStats, error)

	// NextOrderNumber allocates the next order number for the month of at.
	NextOrderNumber(ctx context.Context, tx pgx.Tx, at time.Time) string
}
