package notify

import (
	"context"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// LogSink records every notification in the structured log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("sink", "log").Logger()}
}

func (s *LogSink) NotifyOrderCreated(_ context.Context, order *model.Order) error {
	s.log(EventOrderCreated, order)
	return nil
}

func (s *LogSink) NotifyOrderShipped(_ context.Context, order *model.Order) error {
	s.log(EventOrderShipped, order)
	return nil
}

func (s *LogSink) NotifyOrderDelivered(_ context.Context, order *model.Order) error {
	s.log(EventOrderDelivered, order)
	return nil
}

func (s *LogSink) NotifyOrderCancelled(_ context.Context, order *model.Order) error {
	s.log(EventOrderCancelled, order)
	return nil
}

func (s *LogSink) NotifyPaymentConfirmed(_ context.Context, order *model.Order) error {
	s.log(EventPaymentConfirmed, order)
	return nil
}

func (s *LogSink) log(event Event, order *model.Order) {
	s.logger.Info().
		Str("event", string(event)).
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("user_id", order.UserID.String()).
		Str("status", string(order.Status)).
		Str("total", order.Total.String()).
		Msg("order notification")
}
