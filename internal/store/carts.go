package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const cartColumns = `id, user_id, promocode_id, created_at, updated_at`

func scanCart(row interface{ Scan(dest ...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.PromocodeID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCartByUser returns the user's cart. Every user has at most one.
func (q *Queries) GetCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID))
}

// CreateCart inserts the singleton cart row for a user.
func (q *Queries) CreateCart(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, `INSERT INTO carts (user_id) VALUES ($1) RETURNING `+cartColumns, userID))
}

const upsertCartItem = `
INSERT INTO cart_items (cart_id, product_sku_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, product_sku_id)
DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
RETURNING id, cart_id, product_sku_id, quantity, created_at, updated_at
`

// UpsertCartItem adds a SKU to the cart or replaces the quantity when the
// line already exists.
func (q *Queries) UpsertCartItem(ctx context.Context, cartID, skuID pgtype.UUID, quantity int32) (CartItem, error) {
	row := q.db.QueryRow(ctx, upsertCartItem, cartID, skuID, quantity)
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductSkuID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// DeleteCartItem removes a line scoped to its cart.
func (q *Queries) DeleteCartItem(ctx context.Context, cartID, skuID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_sku_id = $2`, cartID, skuID)
	return err
}

// ClearCartItems drops all lines of a cart.
func (q *Queries) ClearCartItems(ctx context.Context, cartID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// SetCartPromocode attaches (or clears, with an invalid UUID) the cart promocode.
func (q *Queries) SetCartPromocode(ctx context.Context, cartID, promoID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET promocode_id = $2, updated_at = now() WHERE id = $1`, cartID, promoID)
	return err
}

const listCartItemsDetailed = `
SELECT ci.id, ci.product_sku_id, ci.quantity,
       s.price, s.sale_price, s.quantity AS stock,
       p.title, p.image_url
FROM cart_items ci
JOIN product_skus s ON s.id = ci.product_sku_id
JOIN products p ON p.id = s.product_id
WHERE ci.cart_id = $1 AND p.deleted_at IS NULL
ORDER BY ci.created_at
`

// ListCartItemsDetailed joins cart lines with live SKU pricing and stock,
// filtering out soft-deleted products.
func (q *Queries) ListCartItemsDetailed(ctx context.Context, cartID pgtype.UUID) ([]CartItemDetail, error) {
	rows, err := q.db.Query(ctx, listCartItemsDetailed, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItemDetail
	for rows.Next() {
		var d CartItemDetail
		if err := rows.Scan(&d.ItemID, &d.ProductSkuID, &d.Quantity, &d.Price, &d.SalePrice, &d.Stock, &d.ProductTitle, &d.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
