package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// PaymentStatus tracks the payment provider outcome.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected, PaymentStatusRefunded:
		return true
	}
	return false
}

// RefundStatus tracks money owed back after a cancellation.
type RefundStatus string

const (
	RefundStatusNone      RefundStatus = ""
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
)

// Order is a finalised purchase. Items are snapshots taken at creation time and are never
// re-read from the catalogue.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	UserID          uuid.UUID       `json:"userId"`
	User            *UserSummary    `json:"user,omitempty"`
	Items           []LineItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	PromoCode       *string         `json:"promoCode,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Notes           string          `json:"notes,omitempty"`
	Status          OrderStatus     `json:"status"`
	StatusHistory   []StatusEntry   `json:"statusHistory"`
	Payment         Payment         `json:"payment"`
	Tracking        *Tracking       `json:"tracking,omitempty"`
	Cancellation    *Cancellation   `json:"cancellation,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// LineItem is a frozen copy of a product at the moment it was ordered.
type LineItem struct {
	ProductID uuid.UUID       `json:"productId" db:"product_id"`
	Code      string          `json:"code" db:"code"`
	Title     string          `json:"title" db:"title"`
	Thumbnail string          `json:"thumbnail,omitempty" db:"thumbnail"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// NewLineItem snapshots product for the requested quantity.
func NewLineItem(p *Product, quantity int) LineItem {
	return LineItem{
		ProductID: p.ID,
		Code:      p.Code,
		Title:     p.Title,
		Thumbnail: p.Thumbnail(),
		Quantity:  quantity,
		UnitPrice: p.Price,
		Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// ShippingAddress is where the order is delivered. Every field is required.
type ShippingAddress struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	Zip     string `json:"zip" validate:"required,max=20"`
	Country string `json:"country" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"required,max=30"`
}

// StatusEntry is one append-only record in an order's status history.
type StatusEntry struct {
	Status    OrderStatus `json:"status" db:"status"`
	Note      string      `json:"note,omitempty" db:"note"`
	Actor     *uuid.UUID  `json:"actor,omitempty" db:"actor"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
}

// Payment is the payment sub-record of an order.
type Payment struct {
	Method        PaymentMethod  `json:"method"`
	Status        PaymentStatus  `json:"status"`
	TransactionID string         `json:"transactionId,omitempty"`
	PaidAt        *time.Time     `json:"paidAt,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// Tracking identifies the shipment once an order leaves the warehouse.
type Tracking struct {
	Carrier string `json:"carrier" validate:"required,max=100"`
	Number  string `json:"number" validate:"required,max=100"`
	URL     string `json:"url,omitempty" validate:"omitempty,url"`
}

// Cancellation records why and by whom an order was cancelled.
type Cancellation struct {
	Reason       string       `json:"reason"`
	CancelledAt  time.Time    `json:"cancelledAt"`
	CancelledBy  *uuid.UUID   `json:"cancelledBy,omitempty"`
	RefundStatus RefundStatus `json:"refundStatus,omitempty"`
}

// UnavailableReason explains why a cart line could not be ordered.
type UnavailableReason string

const (
	UnavailableNotFound          UnavailableReason = "not_found"
	UnavailableInactive          UnavailableReason = "inactive"
	UnavailableInsufficientStock UnavailableReason = "insufficient_stock"
)

// UnavailableItem describes a cart line left out of an order.
type UnavailableItem struct {
	ProductID uuid.UUID         `json:"productId"`
	Title     string            `json:"title,omitempty"`
	Reason    UnavailableReason `json:"reason"`
	Requested int               `json:"requested"`
	Available int               `json:"available"`
}

// CreateOrderRequest is the payload for turning a cart into an order.
type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" validate:"required,oneof=credit_card debit_card paypal bank_transfer cash_on_delivery"`
	Notes           string          `json:"notes,omitempty" validate:"max=500"`
	PromoCode       *string         `json:"promoCode,omitempty"`
}

// CreateOrderResult is the committed order plus any cart lines that were left behind.
type CreateOrderResult struct {
	Order       *Order            `json:"order"`
	Unavailable []UnavailableItem `json:"unavailable"`
}

// UpdateStatusRequest asks for an administrative status change.
type UpdateStatusRequest struct {
	Status   OrderStatus `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled refunded"`
	Note     string      `json:"note,omitempty" validate:"max=500"`
	Tracking *Tracking   `json:"tracking,omitempty"`
}

// ConfirmPaymentRequest records an approved payment.
type ConfirmPaymentRequest struct {
	TransactionID string         `json:"transactionId" validate:"required,max=200"`
	Details       map[string]any `json:"details,omitempty"`
}

// CancelOrderRequest carries the mandatory cancellation reason.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// OrderFilter narrows administrative order listings. Nil fields are ignored.
type OrderFilter struct {
	Status        *OrderStatus
	UserID        *uuid.UUID
	PaymentStatus *PaymentStatus
	From          *time.Time
	To            *time.Time
}

// OrderQueryOptions controls which references are resolved when reading orders.
type OrderQueryOptions struct {
	IncludeUser bool
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Orders   []Order `json:"orders"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// OrderStats aggregates orders over an optional date range.
type OrderStats struct {
	TotalOrders       int                 `json:"totalOrders"`
	Revenue           decimal.Decimal     `json:"revenue"`
	AverageOrderValue decimal.Decimal     `json:"averageOrderValue"`
	ByStatus          map[OrderStatus]int `json:"byStatus"`
	From              *time.Time          `json:"from,omitempty"`
	To                *time.Time          `json:"to,omitempty"`
}

// AppendStatus moves the order to status and records the change in its history.
func (o *Order) AppendStatus(status OrderStatus, note string, actor *uuid.UUID, at time.Time) {
	o.Status = status
	o.StatusHistory = append(o.StatusHistory, StatusEntry{
		Status:    status,
		Note:      note,
		Actor:     actor,
		CreatedAt: at,
	})
	o.UpdatedAt = at
}

// OwnedBy reports whether userID owns the order.
func (o *Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

// RefundPending reports whether a cancelled order still owes the customer money.
func (o *Order) RefundPending() bool {
	return o.Cancellation != nil && o.Cancellation.RefundStatus == RefundStatusPending
}
