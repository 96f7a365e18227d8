package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const promocodeColumns = `id, code, kind, discount_value, valid_from, valid_to, usage_limit, usage_count, created_at, updated_at`

func scanPromocode(row interface{ Scan(dest ...any) error }) (Promocode, error) {
	var p Promocode
	err := row.Scan(&p.ID, &p.Code, &p.Kind, &p.DiscountValue, &p.ValidFrom, &p.ValidTo, &p.UsageLimit, &p.UsageCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPromocodeByCode looks a promocode up by its unique code.
func (q *Queries) GetPromocodeByCode(ctx context.Context, code string) (Promocode, error) {
	return scanPromocode(q.db.QueryRow(ctx, `SELECT `+promocodeColumns+` FROM promocodes WHERE code = $1`, code))
}

// GetPromocodeByID looks a promocode up by id.
func (q *Queries) GetPromocodeByID(ctx context.Context, id pgtype.UUID) (Promocode, error) {
	return scanPromocode(q.db.QueryRow(ctx, `SELECT `+promocodeColumns+` FROM promocodes WHERE id = $1`, id))
}

const createPromocodeSQL = `
INSERT INTO promocodes (code, kind, discount_value, valid_from, valid_to, usage_limit)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + promocodeColumns

// CreatePromocodeParams carries the admin-facing promocode fields.
type CreatePromocodeParams struct {
	Code          string
	Kind          PromoKind
	DiscountValue int64
	ValidFrom     pgtype.Timestamptz
	ValidTo       pgtype.Timestamptz
	UsageLimit    int32
}

// CreatePromocode inserts a new promocode row.
func (q *Queries) CreatePromocode(ctx context.Context, arg CreatePromocodeParams) (Promocode, error) {
	return scanPromocode(q.db.QueryRow(ctx, createPromocodeSQL,
		arg.Code, arg.Kind, arg.DiscountValue, arg.ValidFrom, arg.ValidTo, arg.UsageLimit))
}

const updatePromocodeSQL = `
UPDATE promocodes
SET kind = $2, discount_value = $3, valid_from = $4, valid_to = $5, usage_limit = $6, updated_at = now()
WHERE code = $1
RETURNING ` + promocodeColumns

// UpdatePromocodeParams mirrors CreatePromocodeParams keyed by code.
type UpdatePromocodeParams struct {
	Code          string
	Kind          PromoKind
	DiscountValue int64
	ValidFrom     pgtype.Timestamptz
	ValidTo       pgtype.Timestamptz
	UsageLimit    int32
}

// UpdatePromocode rewrites the mutable promocode fields.
func (q *Queries) UpdatePromocode(ctx context.Context, arg UpdatePromocodeParams) (Promocode, error) {
	return scanPromocode(q.db.QueryRow(ctx, updatePromocodeSQL,
		arg.Code, arg.Kind, arg.DiscountValue, arg.ValidFrom, arg.ValidTo, arg.UsageLimit))
}

const incrementPromocodeUsage = `
UPDATE promocodes
SET usage_count = usage_count + 1, updated_at = now()
WHERE id = $1 AND usage_count < usage_limit
`

// IncrementPromocodeUsage bumps usage_count by one, refusing to exceed the
// limit. It reports whether a row was updated.
func (q *Queries) IncrementPromocodeUsage(ctx context.Context, id pgtype.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, incrementPromocodeUsage, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const decrementPromocodeUsage = `
UPDATE promocodes
SET usage_count = usage_count - 1, updated_at = now()
WHERE id = $1 AND usage_count > 0
`

// DecrementPromocodeUsage releases one redemption, never going below zero.
func (q *Queries) DecrementPromocodeUsage(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, decrementPromocodeUsage, id)
	return err
}
