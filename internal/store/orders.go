package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, number, user_id, status, currency, total, promocode_id, billing_address, delivery_address, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.Currency, &o.Total, &o.PromocodeID, &o.BillingAddress, &o.DeliveryAddress, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CountPendingOrdersByUser returns how many orders the user has awaiting payment.
func (q *Queries) CountPendingOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status = 'PENDING'`, userID).Scan(&n)
	return n, err
}

const createOrderSQL = `
INSERT INTO orders (number, user_id, currency, total, promocode_id, billing_address, delivery_address)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + orderColumns

// CreateOrderParams carries the immutable order snapshot fields.
type CreateOrderParams struct {
	Number          string
	UserID          pgtype.UUID
	Currency        string
	Total           int64
	PromocodeID     pgtype.UUID
	BillingAddress  []byte
	DeliveryAddress []byte
}

// CreateOrder inserts the order row with status PENDING.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrderSQL,
		arg.Number, arg.UserID, arg.Currency, arg.Total, arg.PromocodeID, arg.BillingAddress, arg.DeliveryAddress))
}

// CreateOrderItem snapshots one purchased line.
func (q *Queries) CreateOrderItem(ctx context.Context, orderID, skuID pgtype.UUID, quantity int32, unitPrice int64) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO order_items (order_id, product_sku_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`,
		orderID, skuID, quantity, unitPrice)
	return err
}

// GetOrderByID fetches a single order.
func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// ListOrdersByUser returns the user's orders, newest first.
func (q *Queries) ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int32) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const updateOrderStatusSQL = `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
`

// TransitionOrderStatus moves an order from one status to another. It reports
// whether the transition happened, so racing writers lose cleanly.
func (q *Queries) TransitionOrderStatus(ctx context.Context, id pgtype.UUID, to, from OrderStatus) (bool, error) {
	tag, err := q.db.Exec(ctx, updateOrderStatusSQL, id, to, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpiredOrderRef identifies a reaped order and its optional promocode.
type ExpiredOrderRef struct {
	ID          pgtype.UUID
	PromocodeID pgtype.UUID
}

const expirePendingOrders = `
UPDATE orders
SET status = 'CANCELLED', updated_at = now()
WHERE status = 'PENDING' AND created_at < $1
RETURNING id, promocode_id
`

// ExpirePendingOrders cancels every pending order created before the cutoff
// and returns the affected rows for side-effect reversal.
func (q *Queries) ExpirePendingOrders(ctx context.Context, cutoff time.Time) ([]ExpiredOrderRef, error) {
	rows, err := q.db.Query(ctx, expirePendingOrders, pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExpiredOrderRef
	for rows.Next() {
		var ref ExpiredOrderRef
		if err := rows.Scan(&ref.ID, &ref.PromocodeID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ListOrderItems returns the snapshot lines of an order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, order_id, product_sku_id, quantity, unit_price, created_at FROM order_items WHERE order_id = $1`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductSkuID, &it.Quantity, &it.UnitPrice, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
