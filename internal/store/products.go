package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getProductSku = `
SELECT id, product_id, sku, price, sale_price, quantity, attrs, created_at, updated_at
FROM product_skus
WHERE id = $1
`

// GetProductSku returns a single SKU row.
func (q *Queries) GetProductSku(ctx context.Context, id pgtype.UUID) (ProductSku, error) {
	row := q.db.QueryRow(ctx, getProductSku, id)
	var s ProductSku
	err := row.Scan(&s.ID, &s.ProductID, &s.Sku, &s.Price, &s.SalePrice, &s.Quantity, &s.Attrs, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const decrementSkuStock = `
UPDATE product_skus
SET quantity = quantity - $2, updated_at = now()
WHERE id = $1
`

// DecrementSkuStock subtracts qty from the SKU stock as a relative update.
// The quantity check constraint rejects the write when stock would go negative.
func (q *Queries) DecrementSkuStock(ctx context.Context, id pgtype.UUID, qty int32) error {
	_, err := q.db.Exec(ctx, decrementSkuStock, id, qty)
	return err
}

const incrementSkuStock = `
UPDATE product_skus
SET quantity = quantity + $2, updated_at = now()
WHERE id = $1
`

// IncrementSkuStock restores qty units of stock as a relative update.
func (q *Queries) IncrementSkuStock(ctx context.Context, id pgtype.UUID, qty int32) error {
	_, err := q.db.Exec(ctx, incrementSkuStock, id, qty)
	return err
}
