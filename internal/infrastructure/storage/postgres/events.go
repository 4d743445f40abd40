package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procura/internal/core/id"
	"procura/internal/domain"
)

var _ domain.EventPublisher = (*EventSink)(nil)

// EventSink records every domain event twice in the caller's transaction:
// as an outbox message for asynchronous delivery and as an audit row.
type EventSink struct {
	txManager *TxManager
	audit     *AuditService
}

// NewEventSink creates an event sink.
func NewEventSink(txManager *TxManager, audit *AuditService) *EventSink {
	return &EventSink{txManager: txManager, audit: audit}
}

// Publish implements domain.EventPublisher.
func (s *EventSink) Publish(ctx context.Context, event domain.Event) error {
	if s.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("publish %s: requires transaction context", event.EventType)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	now := time.Now().UTC()

	msg := &OutboxMessage{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Actor:         event.Actor,
		Payload:       payload,
		CreatedAt:     now,
	}
	if err := insertOutbox(ctx, s.txManager.GetQuerier(ctx), msg); err != nil {
		return err
	}

	return s.audit.Log(ctx, AuditEntry{
		EntityType: event.AggregateType,
		EntityID:   event.AggregateID,
		Action:     event.EventType,
		UserID:     event.Actor,
		Changes:    payload,
		CreatedAt:  now,
	})
}
