package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/id"
	"procura/internal/infrastructure/storage/postgres"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	err   error
	calls []published
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls = append(f.calls, published{exchange: exchange, key: key, msg: msg})
	return f.err
}

func outboxMessage() *postgres.OutboxMessage {
	return &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: "invoice",
		AggregateID:   id.New(),
		EventType:     "verified",
		Actor:         "ap-lead",
		Payload:       json.RawMessage(`{"number":"INV-1"}`),
		CreatedAt:     time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandlePublishesToTopic(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "procura.events", DefaultBreakerConfig())
	msg := outboxMessage()

	require.NoError(t, pub.Handle(context.Background(), msg))
	require.Len(t, ch.calls, 1)

	call := ch.calls[0]
	assert.Equal(t, "procura.events", call.exchange)
	assert.Equal(t, "invoice.verified", call.key)
	assert.Equal(t, msg.ID.String(), call.msg.MessageId)
	assert.Equal(t, uint8(amqp.Persistent), call.msg.DeliveryMode)
	assert.Equal(t, "ap-lead", call.msg.Headers["actor"])
	assert.JSONEq(t, `{"number":"INV-1"}`, string(call.msg.Body))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ch := &fakeChannel{err: errors.New("connection reset")}
	pub := NewPublisher(ch, "procura.events", BreakerConfig{
		ConsecutiveFailures: 2,
		Timeout:             time.Minute,
		MaxRequests:         1,
	})
	ctx := context.Background()

	for range 2 {
		err := pub.Handle(ctx, outboxMessage())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBrokerUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, pub.State())

	// While open, the broker is not touched.
	err := pub.Handle(ctx, outboxMessage())
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
	assert.Len(t, ch.calls, 2)
}

func TestBreakerDefaultsWhenUnset(t *testing.T) {
	ch := &fakeChannel{err: errors.New("down")}
	pub := NewPublisher(ch, "x", BreakerConfig{})

	for range 4 {
		_ = pub.Handle(context.Background(), outboxMessage())
	}
	assert.Equal(t, gobreaker.StateClosed, pub.State())
}
