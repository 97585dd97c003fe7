package model

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	// Only reachable when the cancellation left a refund pending; see Order.RefundPending.
	OrderStatusCancelled: {OrderStatusRefunded},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// RevenueBearing reports whether orders in status s count towards revenue.
func (s OrderStatus) RevenueBearing() bool {
	return s != OrderStatusCancelled && s != OrderStatusRefunded
}
