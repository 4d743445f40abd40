package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procura/internal/core/id"
	"procura/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the number of delivery attempts before a message is parked as failed.
const MaxOutboxRetries = 5

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   id.ID           `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Actor         string          `db:"actor"`
	Payload       json.RawMessage `db:"payload"`
	Status        OutboxStatus    `db:"status"`
	RetryCount    int             `db:"retry_count"`
	LastError     *string         `db:"last_error"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
}

// OutboxHandler delivers one message. A returned error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// insertOutbox writes msg on the transaction carried by ctx.
func insertOutbox(ctx context.Context, q Querier, msg *OutboxMessage) error {
	_, err := q.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, actor, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Actor, msg.Payload, OutboxStatusPending, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxRelay reads pending messages and hands them to a handler.
// Used by the background worker to notify the message broker.
type OutboxRelay struct {
	txManager *TxManager
	batchSize int
	handler   OutboxHandler
	backoff   func(retry int) time.Duration
}

// NewOutboxRelay creates an outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		batchSize: batchSize,
		handler:   handler,
		backoff:   RetryBackoff,
	}
}

// RetryBackoff grows linearly with the attempt number, one minute per attempt.
func RetryBackoff(retry int) time.Duration {
	return time.Duration(retry+1) * time.Minute
}

// ProcessBatch delivers one batch of due messages and returns how many were published.
// Rows stay locked (SKIP LOCKED) until the batch transaction ends, so concurrent
// relays never deliver the same message twice.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		messages, err := r.fetchPending(ctx)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if err := r.handler.Handle(ctx, msg); err != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount, "error", err)
				if markErr := r.markFailed(ctx, msg, err); markErr != nil {
					return markErr
				}
				continue
			}
			if err := r.markPublished(ctx, msg.ID); err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func (r *OutboxRelay) fetchPending(ctx context.Context) ([]*OutboxMessage, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, actor, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		if err := rows.Scan(
			&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Actor,
			&msg.Payload, &msg.Status, &msg.RetryCount, &msg.LastError,
			&msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return messages, nil
}

func (r *OutboxRelay) markPublished(ctx context.Context, msgID id.ID) error {
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msgID)
	if err != nil {
		return fmt.Errorf("mark outbox message published: %w", err)
	}
	return nil
}

func (r *OutboxRelay) markFailed(ctx context.Context, msg *OutboxMessage, cause error) error {
	status := OutboxStatusPending
	if msg.RetryCount+1 >= MaxOutboxRetries {
		status = OutboxStatusFailed
	}
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1, last_error = $1, next_retry_at = $2, status = $3
		WHERE id = $4
	`, cause.Error(), time.Now().UTC().Add(r.backoff(msg.RetryCount)), status, msg.ID)
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}

// PurgePublished deletes published messages older than olderThan.
func (r *OutboxRelay) PurgePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
