package cart

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

func TestLineQuantity(t *testing.T) {
	cases := []struct {
		name    string
		cartQty int32
		stock   int32
		want    int32
	}{
		{"within stock", 3, 10, 3},
		{"clamped to stock", 10, 5, 5},
		{"out of stock", 4, 0, 0},
		{"negative stock", 2, -1, 0},
		{"negative quantity", -3, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := lineQuantity(tc.cartQty, tc.stock); got != tc.want {
				t.Fatalf("lineQuantity(%d, %d) = %d, want %d", tc.cartQty, tc.stock, got, tc.want)
			}
		})
	}
}

func TestUnitPrice(t *testing.T) {
	regular := store.CartItemDetail{Price: 2000}
	if got := unitPrice(regular); got != 2000 {
		t.Fatalf("expected regular price 2000, got %d", got)
	}

	onSale := store.CartItemDetail{Price: 2000, SalePrice: pgtype.Int8{Int64: 1200, Valid: true}}
	if got := unitPrice(onSale); got != 1200 {
		t.Fatalf("expected sale price 1200, got %d", got)
	}
}
