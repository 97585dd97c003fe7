package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLineItem_SnapshotsProduct(t *testing.T) {
	product := &Product{
		ID:         uuid.New(),
		Code:       "SKU-001",
		Title:      "Espresso Beans",
		Price:      decimal.NewFromInt(10000),
		Stock:      5,
		Active:     true,
		Thumbnails: []string{"a.jpg", "b.jpg"},
	}

	item := NewLineItem(product, 3)

	assert.Equal(t, product.ID, item.ProductID)
	assert.Equal(t, "SKU-001", item.Code)
	assert.Equal(t, "Espresso Beans", item.Title)
	assert.Equal(t, "a.jpg", item.Thumbnail)
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, decimal.NewFromInt(10000).Equal(item.UnitPrice))
	assert.True(t, decimal.NewFromInt(30000).Equal(item.Subtotal))

	// Later catalogue edits must not leak into the snapshot.
	product.Price = decimal.NewFromInt(1)
	product.Title = "Renamed"
	assert.True(t, decimal.NewFromInt(10000).Equal(item.UnitPrice))
	assert.Equal(t, "Espresso Beans", item.Title)
}

func TestOrder_AppendStatus(t *testing.T) {
	actor := uuid.New()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	order := &Order{}
	order.AppendStatus(OrderStatusPending, "created", nil, first)
	order.AppendStatus(OrderStatusProcessing, "paid", &actor, second)

	require.Len(t, order.StatusHistory, 2)
	assert.Equal(t, OrderStatusProcessing, order.Status)
	assert.Equal(t, OrderStatusPending, order.StatusHistory[0].Status)
	assert.Equal(t, &actor, order.StatusHistory[1].Actor)
	assert.Equal(t, second, order.UpdatedAt)
}

func TestOrder_RefundPending(t *testing.T) {
	order := &Order{}
	assert.False(t, order.RefundPending())

	order.Cancellation = &Cancellation{RefundStatus: RefundStatusNone}
	assert.False(t, order.RefundPending())

	order.Cancellation.RefundStatus = RefundStatusPending
	assert.True(t, order.RefundPending())
}

func TestErrors_AreDistinguishable(t *testing.T) {
	var notFound *NotFoundError
	var business *BusinessError
	var orderErr *OrderError

	err := error(NewNotFoundError("cart", uuid.Nil))
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "cart 00000000-0000-0000-0000-000000000000 not found", err.Error())

	err = NewBusinessError(ErrCodeEmptyCart, "cart is empty")
	assert.True(t, errors.As(err, &business))
	assert.False(t, errors.As(err, &orderErr))

	err = NewNotCancellableError(OrderStatusDelivered)
	require.True(t, errors.As(err, &orderErr))
	assert.Equal(t, ErrCodeNotCancellable, orderErr.Code)
	assert.Equal(t, OrderStatusDelivered, orderErr.From)
}

func TestPaymentStatus_Valid(t *testing.T) {
	for _, status := range []PaymentStatus{PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected, PaymentStatusRefunded} {
		assert.True(t, status.Valid(), status)
	}
	assert.False(t, PaymentStatus("settled").Valid())
}
