package order

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// Line is one purchasable snapshot entry of the checkout transaction.
type Line struct {
	ProductSkuID pgtype.UUID
	Quantity     int32
	UnitPrice    int64
}

// BuildLines turns live cart details into order lines. Lines whose SKU is out
// of stock are dropped; surviving quantities are clamped to available stock
// and priced at the stored sale price when present.
func BuildLines(details []store.CartItemDetail) []Line {
	lines := make([]Line, 0, len(details))
	for _, d := range details {
		if d.Stock <= 0 {
			continue
		}
		qty := d.Quantity
		if qty > d.Stock {
			qty = d.Stock
		}
		if qty <= 0 {
			continue
		}
		price := d.Price
		if d.SalePrice.Valid {
			price = d.SalePrice.Int64
		}
		lines = append(lines, Line{ProductSkuID: d.ProductSkuID, Quantity: qty, UnitPrice: price})
	}
	return lines
}

// NewNumber generates a human-facing order number, e.g. ORD-20260831-4F7A21.
func NewNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%06X", now.UTC().Format("20060102"), rand.Intn(1<<24))
}

// IsExpired reports whether an order created at the given instant has
// outlived the payment window. Pure so the reaper and the payment bridge
// agree on expiry.
func IsExpired(createdAt time.Time, ttl time.Duration, now time.Time) bool {
	return now.After(createdAt.Add(ttl))
}
