package messaging

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection owns the AMQP connection and publishing channel.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Connection{conn: conn, ch: ch}, nil
}

// Channel returns the publishing channel.
func (c *Connection) Channel() *amqp.Channel {
	return c.ch
}

// Close closes the channel and the connection.
func (c *Connection) Close() error {
	chErr := c.ch.Close()
	if c.conn.IsClosed() {
		return chErr
	}
	return errors.Join(chErr, c.conn.Close())
}
