// Package messaging delivers domain events from the outbox to RabbitMQ.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

// ErrBrokerUnavailable is returned while the circuit breaker is open.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// BreakerConfig tunes the circuit breaker around the broker.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
	MaxRequests         uint32
}

// DefaultBreakerConfig opens after five straight failures and probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		MaxRequests:         1,
	}
}

// Publisher sends outbox messages to a topic exchange.
// Routing key: <aggregate_type>.<event_type>, e.g. "invoice.verified".
type Publisher struct {
	ch       Channel
	exchange string
	breaker  *gobreaker.CircuitBreaker
}

// NewPublisher wraps ch with a circuit breaker.
func NewPublisher(ch Channel, exchange string, cfg BreakerConfig) *Publisher {
	if cfg.ConsecutiveFailures == 0 {
		cfg = DefaultBreakerConfig()
	}

	settings := gobreaker.Settings{
		Name:        "amqp:" + exchange,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Publisher{
		ch:       ch,
		exchange: exchange,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// RoutingKey returns the topic a message is published under.
func RoutingKey(msg *postgres.OutboxMessage) string {
	return msg.AggregateType + "." + msg.EventType
}

// Handle implements postgres.OutboxHandler.
func (p *Publisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Timestamp:    msg.CreatedAt,
		Type:         msg.EventType,
		Headers: amqp.Table{
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID.String(),
			"actor":          msg.Actor,
		},
		Body: msg.Payload,
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(msg), false, false, publishing)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKey(msg), err)
	}
	return nil
}

// State reports the breaker state for health checks.
func (p *Publisher) State() gobreaker.State {
	return p.breaker.State()
}

var _ postgres.OutboxHandler = (*Publisher)(nil)
