package promo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/currency"
	"github.com/kiosko-dev/backend-kiosko/internal/obs"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// Querier captures the database methods required by the promocode service.
type Querier interface {
	GetPromocodeByCode(ctx context.Context, code string) (store.Promocode, error)
	GetPromocodeByID(ctx context.Context, id pgtype.UUID) (store.Promocode, error)
	CreatePromocode(ctx context.Context, arg store.CreatePromocodeParams) (store.Promocode, error)
	UpdatePromocode(ctx context.Context, arg store.UpdatePromocodeParams) (store.Promocode, error)
}

// Service resolves promocodes and evaluates their redemption rules.
type Service struct {
	Q        Querier
	Currency *currency.Engine
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RuleFromModel converts a stored promocode row into its runtime rule.
func RuleFromModel(p store.Promocode) Rule {
	r := Rule{
		ID:            store.UUIDString(p.ID),
		Code:          p.Code,
		Kind:          string(p.Kind),
		DiscountValue: p.DiscountValue,
		UsageLimit:    p.UsageLimit,
		UsageCount:    p.UsageCount,
	}
	if p.ValidFrom.Valid {
		r.ValidFrom = p.ValidFrom.Time
	}
	if p.ValidTo.Valid {
		r.ValidTo = p.ValidTo.Time
	}
	return r
}

// GetByCode resolves a promocode by code. With enforce set, the rule must be
// redeemable right now; without it, the row is returned as-is so admin views
// can inspect inactive codes.
func (s *Service) GetByCode(ctx context.Context, code string, enforce bool) (Rule, error) {
	if s == nil || s.Q == nil {
		return Rule{}, errors.New("promo service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Rule{}, ErrNotFound
	}
	row, err := s.Q.GetPromocodeByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	rule := RuleFromModel(row)
	if enforce {
		if err := rule.Validate(s.now()); err != nil {
			obs.IncPromoRejection(rejectionReason(err))
			return Rule{}, err
		}
	}
	return rule, nil
}

// GetByID resolves a promocode by id with the same enforce semantics as GetByCode.
func (s *Service) GetByID(ctx context.Context, id pgtype.UUID, enforce bool) (Rule, error) {
	if s == nil || s.Q == nil {
		return Rule{}, errors.New("promo service not configured")
	}
	row, err := s.Q.GetPromocodeByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	rule := RuleFromModel(row)
	if enforce {
		if err := rule.Validate(s.now()); err != nil {
			obs.IncPromoRejection(rejectionReason(err))
			return Rule{}, err
		}
	}
	return rule, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotYetActive):
		return "not_yet_active"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInactive):
		return "inactive"
	default:
		return "other"
	}
}

// DisplayValue returns the rule's discount value in the target currency.
// Fixed discounts are stored in the base currency and must be converted
// before display; percent values are currency-agnostic.
func (s *Service) DisplayValue(ctx context.Context, rule Rule, target string) (int64, error) {
	if rule.Kind != KindFixed || s == nil || s.Currency == nil {
		return rule.DiscountValue, nil
	}
	return s.Currency.Convert(ctx, rule.DiscountValue, s.Currency.Base, target)
}

// ConvertedRule returns a copy of the rule with a fixed discount value
// converted into the target currency for pricing arithmetic.
func (s *Service) ConvertedRule(ctx context.Context, rule Rule, target string) (Rule, error) {
	value, err := s.DisplayValue(ctx, rule, target)
	if err != nil {
		return Rule{}, err
	}
	converted := rule
	converted.DiscountValue = value
	return converted, nil
}
