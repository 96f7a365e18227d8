package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

type recordingStore struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (r *recordingStore) InsertDomainEvent(_ context.Context, topic string, _ pgtype.UUID, payload []byte) (store.DomainEvent, error) {
	if r.err != nil {
		return store.DomainEvent{}, r.err
	}
	r.topics = append(r.topics, topic)
	r.payloads = append(r.payloads, payload)
	return store.DomainEvent{Topic: topic, Payload: payload}, nil
}

func TestPublishRecordsEvent(t *testing.T) {
	rec := &recordingStore{}
	bus := &Bus{S: rec, Log: zerolog.Nop()}

	bus.Publish(context.Background(), TopicOrderCreated, store.NewUUID(), map[string]string{"number": "ORD-1"})

	if len(rec.topics) != 1 || rec.topics[0] != TopicOrderCreated {
		t.Fatalf("unexpected topics: %v", rec.topics)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.payloads[0], &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["number"] != "ORD-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestPublishSwallowsStoreErrors(t *testing.T) {
	bus := &Bus{S: &recordingStore{err: errors.New("insert failed")}, Log: zerolog.Nop()}
	// must not panic or surface the error
	bus.Publish(context.Background(), TopicOrderPaid, store.NewUUID(), nil)
}

func TestPublishNilBusIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(context.Background(), TopicOrderCancelled, store.NewUUID(), nil)
}

func TestPublishTxRecordsEvent(t *testing.T) {
	rec := &recordingStore{}

	err := PublishTx(context.Background(), rec, zerolog.Nop(), TopicOrderCreated, store.NewUUID(), map[string]string{"number": "ORD-1"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(rec.topics) != 1 || rec.topics[0] != TopicOrderCreated {
		t.Fatalf("unexpected topics: %v", rec.topics)
	}
}

func TestPublishTxSurfacesInsertError(t *testing.T) {
	insertErr := errors.New("insert failed")
	rec := &recordingStore{err: insertErr}

	err := PublishTx(context.Background(), rec, zerolog.Nop(), TopicOrderPaid, store.NewUUID(), nil)
	if !errors.Is(err, insertErr) {
		t.Fatalf("expected the insert error back, got %v", err)
	}
}
