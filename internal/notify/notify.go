// Package notify delivers order notifications after the owning transaction has committed.
// Delivery is asynchronous and best effort: failures are retried with bounded exponential
// backoff and logged, never returned to the caller that produced the event.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event names a notification.
type Event string

const (
	EventOrderCreated     Event = "order.created"
	EventOrderShipped     Event = "order.shipped"
	EventOrderDelivered   Event = "order.delivered"
	EventOrderCancelled   Event = "order.cancelled"
	EventPaymentConfirmed Event = "payment.confirmed"
)

// ErrUnknownEvent is returned for events no sink method handles. Such tasks are not retried.
var ErrUnknownEvent = errors.New("unknown notification event")

// Sink receives order notifications. Implementations must be safe for concurrent use.
type Sink interface {
	NotifyOrderCreated(ctx context.Context, order *model.Order) error
	NotifyOrderShipped(ctx context.Context, order *model.Order) error
	NotifyOrderDelivered(ctx context.Context, order *model.Order) error
	NotifyOrderCancelled(ctx context.Context, order *model.Order) error
	NotifyPaymentConfirmed(ctx context.Context, order *model.Order) error
}

// Task is one pending delivery of an event to a named sink.
type Task struct {
	ID        string      `json:"id"`
	Sink      string      `json:"sink"`
	Event     Event       `json:"event"`
	Order     model.Order `json:"order"`
	Attempt   int         `json:"attempt"`
	NotBefore time.Time   `json:"notBefore"`
}

// Message is the wire form of a notification pushed to websocket clients and the event stream.
type Message struct {
	Event       Event             `json:"event"`
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	UserID      uuid.UUID         `json:"userId"`
	Status      model.OrderStatus `json:"status"`
	Total       decimal.Decimal   `json:"total"`
	Tracking    *model.Tracking   `json:"tracking,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// NewMessage builds the wire form of event for order.
func NewMessage(event Event, order *model.Order) Message {
	return Message{
		Event:       event,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		Total:       order.Total,
		Tracking:    order.Tracking,
		OccurredAt:  order.UpdatedAt,
	}
}

// Deliver calls the sink method matching event.
func Deliver(ctx context.Context, sink Sink, event Event, order *model.Order) error {
	switch event {
	case EventOrderCreated:
		return sink.NotifyOrderCreated(ctx, order)
	case EventOrderShipped:
		return sink.NotifyOrderShipped(ctx, order)
	case EventOrderDelivered:
		return sink.NotifyOrderDelivered(ctx, order)
	case EventOrderCancelled:
		return sink.NotifyOrderCancelled(ctx, order)
	case EventPaymentConfirmed:
		return sink.NotifyPaymentConfirmed(ctx, order)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

// EventForStatus returns the event announcing a transition into status, if any.
func EventForStatus(status model.OrderStatus) (Event, bool) {
	switch status {
	case model.OrderStatusShipped:
		return EventOrderShipped, true
	case model.OrderStatusDelivered:
		return EventOrderDelivered, true
	case model.OrderStatusCancelled:
		return EventOrderCancelled, true
	}
	return "", false
}
