package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, session_id, status, amount, currency, redirect_url, created_at, updated_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.SessionID, &p.Status, &p.Amount, &p.Currency, &p.RedirectURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const createPaymentSQL = `
INSERT INTO payments (order_id, session_id, amount, currency, redirect_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + paymentColumns

// CreatePaymentParams records a new gateway checkout attempt.
type CreatePaymentParams struct {
	OrderID     pgtype.UUID
	SessionID   string
	Amount      int64
	Currency    string
	RedirectURL pgtype.Text
}

// CreatePayment inserts a payment row with status PENDING.
func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPaymentSQL,
		arg.OrderID, arg.SessionID, arg.Amount, arg.Currency, arg.RedirectURL))
}

// GetPaymentBySession fetches a payment by its gateway session identifier.
func (q *Queries) GetPaymentBySession(ctx context.Context, sessionID string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE session_id = $1`, sessionID))
}

// GetLatestPaymentByOrder returns the most recent payment attempt for an order.
func (q *Queries) GetLatestPaymentByOrder(ctx context.Context, orderID pgtype.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
}

// UpdatePaymentStatus moves a payment to a new status.
func (q *Queries) UpdatePaymentStatus(ctx context.Context, id pgtype.UUID, status PaymentStatus) error {
	_, err := q.db.Exec(ctx, `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}
