package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// MaxDeliveries bounds how often a failing message is handed to a handler
// before it is dead-lettered.
const MaxDeliveries = 3

// HandlerFunc processes one event. Returning an error wrapped with
// backoff.Permanent dead-letters the message without redelivery.
type HandlerFunc func(ctx context.Context, event *Event) error

// Consumer dispatches events from one queue to handlers keyed by event type.
type Consumer struct {
	rmq      *RabbitMQ
	queue    string
	handlers map[string]HandlerFunc
	logger   *logger.Logger
}

// NewConsumer declares queue and returns a consumer reading from it.
func NewConsumer(rmq *RabbitMQ, queue string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queue); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return newConsumer(rmq, queue, log), nil
}

func newConsumer(rmq *RabbitMQ, queue string, log *logger.Logger) *Consumer {
	return &Consumer{
		rmq:      rmq,
		queue:    queue,
		handlers: make(map[string]HandlerFunc),
		logger:   log.WithComponent("consumer").WithQueue(queue),
	}
}

// Bind routes messages published on exchange under pattern into the queue.
func (c *Consumer) Bind(exchange, pattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if err := c.rmq.BindQueue(c.queue, exchange, pattern); err != nil {
		return fmt.Errorf("failed to bind %s to %s: %w", c.queue, exchange, err)
	}

	c.logger.Info().Str("exchange", exchange).Str("routing_key", pattern).Msg("queue bound")
	return nil
}

// Handle registers fn for eventType, replacing any earlier handler.
func (c *Consumer) Handle(eventType string, fn HandlerFunc) {
	c.handlers[eventType] = fn
}

// Start consumes until ctx is done or the broker closes the delivery channel.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	c.logger.Info().Int("handlers", len(c.handlers)).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("delivery channel closed")
					return
				}
				c.dispatch(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) dispatch(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("dropping undecodable message")
		_ = msg.Reject(false)
		return
	}
	if event.Type == "" {
		event.Type = msg.RoutingKey
	}

	fn, ok := c.handlers[event.Type]
	if !ok {
		_ = msg.Ack(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	attempt := deliveryCount(msg) + 1

	err := fn(ctx, &event)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	log := c.logger.With().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("attempt", attempt).
		Logger()

	var permanent *backoff.PermanentError
	switch {
	case errors.As(err, &permanent):
		log.Error().Err(permanent.Err).Msg("event rejected, dead-lettering")
		_ = msg.Reject(false)
	case attempt >= MaxDeliveries:
		log.Error().Err(err).Msg("event failed on final delivery, dead-lettering")
		_ = msg.Reject(false)
	default:
		log.Warn().Err(err).Msg("event failed, requeueing")
		_ = msg.Nack(false, true)
	}
}

// deliveryCount reports how often msg was delivered before. Quorum queues
// set x-delivery-count; x-death covers messages that went through a DLX.
func deliveryCount(msg amqp.Delivery) int {
	if n, ok := headerInt(msg.Headers["x-delivery-count"]); ok {
		return n
	}

	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		total := 0
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if n, ok := headerInt(d["count"]); ok {
					total += n
				}
			}
		}
		if total > 0 {
			return total
		}
	}

	if msg.Redelivered {
		return 1
	}
	return 0
}

func headerInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
