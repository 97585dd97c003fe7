package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Details       any    `json:"details,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeEmptyCart         = "EMPTY_CART"
	ErrCodeCartLimit         = "CART_LIMIT_EXCEEDED"
	ErrCodeNoAvailableItems  = "NO_AVAILABLE_ITEMS"
	ErrCodeBelowMinimum      = "BELOW_MINIMUM"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	ErrCodeInvalidPromoCode  = "INVALID_PROMO_CODE"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeNotCancellable    = "NOT_CANCELLABLE"
	ErrCodePaymentState      = "INVALID_PAYMENT_STATE"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFoundError creates a not-found error for the given entity.
func NewNotFoundError(entity string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// BusinessError reports a request that violates a domain rule.
// Details carries structured context for the caller, e.g. unavailable items.
type BusinessError struct {
	Code    string
	Message string
	Details any
}

func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError creates a new business rule violation.
func NewBusinessError(code, message string) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}

// OrderError reports an operation that is not allowed from the order's current status.
type OrderError struct {
	Code    string
	Message string
	From    OrderStatus
	To      OrderStatus
}

func (e *OrderError) Error() string {
	return e.Message
}

// NewTransitionError creates an OrderError for a rejected status change.
func NewTransitionError(from, to OrderStatus) *OrderError {
	return &OrderError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot change order status from %s to %s", from, to),
		From:    from,
		To:      to,
	}
}

// NewNotCancellableError creates an OrderError for a cancellation attempt on a settled order.
func NewNotCancellableError(status OrderStatus) *OrderError {
	return &OrderError{
		Code:    ErrCodeNotCancellable,
		Message: fmt.Sprintf("order in status %s cannot be cancelled", status),
		From:    status,
		To:      OrderStatusCancelled,
	}
}

// NewPaymentStateError creates an OrderError for a payment confirmation the order cannot accept.
func NewPaymentStateError(status OrderStatus, payment PaymentStatus) *OrderError {
	return &OrderError{
		Code:    ErrCodePaymentState,
		Message: fmt.Sprintf("cannot confirm payment for order in status %s with payment %s", status, payment),
		From:    status,
		To:      OrderStatusProcessing,
	}
}
