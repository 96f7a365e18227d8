package order

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/events"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

func TestReaperReversesExpiredOrders(t *testing.T) {
	orderID := store.NewUUID()
	sku := store.NewUUID()
	stub := &orderStoreStub{
		expired: []store.ExpiredOrderRef{{ID: orderID, PromocodeID: store.NewUUID()}},
		orderItems: map[string][]store.OrderItem{
			store.UUIDString(orderID): {{OrderID: orderID, ProductSkuID: sku, Quantity: 3}},
		},
	}
	r := &Reaper{DB: stub, TTL: time.Hour, Log: zerolog.Nop()}

	n, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reaped order, got %d", n)
	}
	if got := stub.incremented[store.UUIDString(sku)]; got != 3 {
		t.Fatalf("expected stock restored by 3, got %d", got)
	}
	if stub.promoDec != 1 {
		t.Fatalf("expected promocode usage returned once, got %d", stub.promoDec)
	}
	if stub.tx == nil || !stub.tx.committed {
		t.Fatalf("reap transaction not committed")
	}
	if len(stub.topics) != 1 || stub.topics[0] != events.TopicOrderCancelled {
		t.Fatalf("expected one %s event, got %v", events.TopicOrderCancelled, stub.topics)
	}
}

func TestReaperNothingToReap(t *testing.T) {
	stub := &orderStoreStub{}
	r := &Reaper{DB: stub, TTL: time.Hour, Log: zerolog.Nop()}

	n, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 reaped orders, got %d", n)
	}
	if stub.promoDec != 0 || len(stub.incremented) != 0 {
		t.Fatalf("empty tick must not touch stock or promocodes")
	}
}
