package order

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

func TestBuildLinesClampsToStock(t *testing.T) {
	sku := store.NewUUID()
	details := []store.CartItemDetail{
		{ProductSkuID: sku, Quantity: 10, Stock: 5, Price: 2000},
	}
	lines := BuildLines(details)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 5 {
		t.Fatalf("expected quantity clamped to 5, got %d", lines[0].Quantity)
	}
	if lines[0].UnitPrice != 2000 {
		t.Fatalf("expected unit price 2000, got %d", lines[0].UnitPrice)
	}
}

func TestBuildLinesDropsOutOfStock(t *testing.T) {
	details := []store.CartItemDetail{
		{ProductSkuID: store.NewUUID(), Quantity: 2, Stock: 0, Price: 1000},
		{ProductSkuID: store.NewUUID(), Quantity: 1, Stock: 3, Price: 500},
	}
	lines := BuildLines(details)
	if len(lines) != 1 {
		t.Fatalf("expected out-of-stock line dropped, got %d lines", len(lines))
	}
	if lines[0].UnitPrice != 500 {
		t.Fatalf("expected the in-stock line to survive, got price %d", lines[0].UnitPrice)
	}
}

func TestBuildLinesPrefersSalePrice(t *testing.T) {
	details := []store.CartItemDetail{
		{
			ProductSkuID: store.NewUUID(),
			Quantity:     1,
			Stock:        10,
			Price:        2000,
			SalePrice:    pgtype.Int8{Int64: 1500, Valid: true},
		},
	}
	lines := BuildLines(details)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].UnitPrice != 1500 {
		t.Fatalf("expected sale price 1500, got %d", lines[0].UnitPrice)
	}
}

func TestNewNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	number := NewNumber(now)
	if !strings.HasPrefix(number, "ORD-20260831-") {
		t.Fatalf("unexpected order number prefix: %s", number)
	}
	if len(number) != len("ORD-20260831-")+6 {
		t.Fatalf("unexpected order number length: %s", number)
	}
}

func TestIsExpired(t *testing.T) {
	createdAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ttl := 30 * time.Minute

	if IsExpired(createdAt, ttl, createdAt.Add(29*time.Minute)) {
		t.Fatal("order inside the payment window must not be expired")
	}
	if IsExpired(createdAt, ttl, createdAt.Add(30*time.Minute)) {
		t.Fatal("order exactly at the deadline must not be expired")
	}
	if !IsExpired(createdAt, ttl, createdAt.Add(30*time.Minute+time.Second)) {
		t.Fatal("order past the deadline must be expired")
	}
}
