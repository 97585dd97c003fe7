package service

import (
	"context"
	"time"

	"storefront/internal/model"
	"storefront/internal/notify"

	"github.com/google/uuid"
)

// ProductService defines read operations on the catalogue.
type ProductService interface {
	// GetAll retrieves products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
}

// OrderService defines the order lifecycle operations.
type OrderService interface {
	// CreateOrderFromCart turns the user's cart into an order in a single transaction.
	// Lines that cannot be fulfilled stay in the cart and are reported in the result.
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.CreateOrderResult, error)

	// GetOrder retrieves an order visible to caller.
	GetOrder(ctx context.Context, id uuid.UUID, caller model.Identity) (*model.Order, error)

	// ListMyOrders pages through the caller's own orders.
	ListMyOrders(ctx context.Context, userID uuid.UUID, status *model.OrderStatus, page, pageSize int) (*model.OrderPage, error)

	// ListOrders pages through all orders matching filter.
	ListOrders(ctx context.Context, filter model.OrderFilter, page, pageSize int) (*model.OrderPage, error)

	// UpdateOrderStatus applies an administrative status change.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest, caller model.Identity) (*model.Order, error)

	// ConfirmPayment records an approved payment and moves the order to processing.
	ConfirmPayment(ctx context.Context, id uuid.UUID, req *model.ConfirmPaymentRequest, caller model.Identity) (*model.Order, error)

	// CancelOrder cancels an order and restores its stock.
	CancelOrder(ctx context.Context, id uuid.UUID, reason string, caller model.Identity) (*model.Order, error)

	// GetOrderStats aggregates orders created in [from, to).
	GetOrderStats(ctx context.Context, from, to *time.Time) (*model.OrderStats, error)
}

// Notifier schedules post-commit notifications. It never reports failure to the caller.
type Notifier interface {
	Dispatch(ctx context.Context, event notify.Event, order *model.Order)
}
