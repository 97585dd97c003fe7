package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the event stream sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every notification to the order event topic, keyed by order id
// so that events for one order stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	logger zerolog.Logger
}

// NewKafkaSink creates a sink writing to cfg.Topic on cfg.Brokers.
func NewKafkaSink(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaSinkWithWriter(writer, logger)
}

// NewKafkaSinkWithWriter creates a sink on an existing writer.
func NewKafkaSinkWithWriter(writer MessageWriter, logger zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		logger: logger.With().Str("sink", "kafka").Logger(),
	}
}

func (s *KafkaSink) NotifyOrderCreated(ctx context.Context, order *model.Order) error {
	return s.publish(ctx, EventOrderCreated, order)
}

func (s *KafkaSink) NotifyOrderShipped(ctx context.Context, order *model.Order) error {
	return s.publish(ctx, EventOrderShipped, order)
}

func (s *KafkaSink) NotifyOrderDelivered(ctx context.Context, order *model.Order) error {
	return s.publish(ctx, EventOrderDelivered, order)
}

func (s *KafkaSink) NotifyOrderCancelled(ctx context.Context, order *model.Order) error {
	return s.publish(ctx, EventOrderCancelled, order)
}

func (s *KafkaSink) NotifyPaymentConfirmed(ctx context.Context, order *model.Order) error {
	return s.publish(ctx, EventPaymentConfirmed, order)
}

func (s *KafkaSink) publish(ctx context.Context, event Event, order *model.Order) error {
	value, err := json.Marshal(NewMessage(event, order))
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal %s: %w", event, err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: failed to publish %s: %w", event, err)
	}

	s.logger.Debug().
		Str("event", string(event)).
		Str("order_number", order.OrderNumber).
		Msg("event published")
	return nil
}

// Close flushes pending writes.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
