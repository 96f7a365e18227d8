package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// InsertDomainEvent appends an order lifecycle audit record.
func (q *Queries) InsertDomainEvent(ctx context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (DomainEvent, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO domain_events (topic, aggregate_id, payload) VALUES ($1, $2, $3)
		 RETURNING id, topic, aggregate_id, payload, occurred_at`,
		topic, aggregateID, payload)
	var ev DomainEvent
	err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}
