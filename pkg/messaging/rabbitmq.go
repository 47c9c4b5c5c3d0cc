package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// DeadLetterExchange receives every message a consumer rejects.
const DeadLetterExchange = "dlx.events"

// DeadLetterQueueName is the queue holding a service's rejected messages.
func DeadLetterQueueName(serviceName string) string {
	return "dlq." + serviceName
}

// RabbitMQ owns one broker connection and the channel shared by the
// service's publisher and consumers.
type RabbitMQ struct {
	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger
}

// New dials the broker, retrying with exponential backoff starting at
// ReconnectDelay for up to MaxRetries attempts, so the service may come up
// before RabbitMQ does.
func New(ctx context.Context, cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{logger: log.WithComponent("rabbitmq")}

	b := backoff.NewExponentialBackOff()
	if cfg.ReconnectDelay > 0 {
		b.InitialInterval = cfg.ReconnectDelay
	}
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := r.dial(cfg)
		if err != nil {
			r.logger.Warn().Err(err).Int("attempt", attempt).Msg("RabbitMQ not reachable")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempt, err)
	}
	return r, nil
}

func (r *RabbitMQ) dial(cfg *config.RabbitMQConfig) error {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set prefetch: %w", err)
	}

	r.mu.Lock()
	r.conn, r.channel = conn, ch
	r.mu.Unlock()

	r.logger.Info().Int("prefetch", cfg.PrefetchCount).Msg("connected to RabbitMQ")
	return nil
}

// Channel returns the shared channel.
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the channel and the connection.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports "down" once the broker dropped the connection.
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange.
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

// DeclareQueue declares a durable quorum queue that dead-letters into
// DeadLetterExchange. Quorum queues stamp x-delivery-count on redeliveries,
// which the consumer uses to stop requeueing.
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.Channel().QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-queue-type":           "quorum",
		"x-dead-letter-exchange": DeadLetterExchange,
	})
}

// BindQueue routes messages matching pattern on exchange into queue.
func (r *RabbitMQ) BindQueue(queue, exchange, pattern string) error {
	return r.Channel().QueueBind(queue, pattern, exchange, false, nil)
}

// DeclareDeadLetterQueue declares DeadLetterExchange and binds the service's
// dead letter queue to it for every routing key.
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	if err := r.DeclareExchange(DeadLetterExchange); err != nil {
		return fmt.Errorf("failed to declare %s: %w", DeadLetterExchange, err)
	}

	queue := DeadLetterQueueName(serviceName)
	if _, err := r.Channel().QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	if err := r.BindQueue(queue, DeadLetterExchange, "#"); err != nil {
		return fmt.Errorf("failed to bind %s: %w", queue, err)
	}
	return nil
}
