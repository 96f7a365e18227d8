package events

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// Order lifecycle topics recorded in the domain_events table.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"
	TopicPaymentFailed  = "payment.failed"
	TopicPaymentExpired = "payment.expired"
)

// Store persists domain events.
type Store interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (store.DomainEvent, error)
}

// Bus writes order lifecycle events as an append-only audit trail. Publishing
// is best-effort; a failed insert is logged, never surfaced to the caller.
type Bus struct {
	S   Store
	Log zerolog.Logger
}

// Publish records one event. A nil bus or store is a no-op so callers do not
// guard every publish site.
func (b *Bus) Publish(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) {
	if b == nil || b.S == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		b.Log.Error().Err(err).Str("topic", topic).Msg("event_payload_marshal_failed")
		return
	}
	if _, err := b.S.InsertDomainEvent(ctx, topic, aggregateID, body); err != nil {
		b.Log.Error().Err(err).Str("topic", topic).Msg("event_publish_failed")
	}
}

// PublishTx records one event through transaction-bound queries so the event
// commits or rolls back with the rest of the unit of work. Callers inside an
// open transaction must treat a returned error as fatal to that transaction;
// a failed insert leaves it unusable.
func PublishTx(ctx context.Context, q Store, log zerolog.Logger, topic string, aggregateID pgtype.UUID, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := q.InsertDomainEvent(ctx, topic, aggregateID, body); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("event_publish_failed")
		return err
	}
	return nil
}
