package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiosko-dev/backend-kiosko/internal/currency"
	"github.com/kiosko-dev/backend-kiosko/internal/promo"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Service encapsulates cart mutation and pricing aggregation.
type Service struct {
	Q        *store.Queries
	Currency *currency.Engine
	Promo    *promo.Service
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PricedItem is one cart line priced against live stock.
type PricedItem struct {
	ItemID         string `json:"id"`
	ProductSkuID   string `json:"productSkuId"`
	ProductTitle   string `json:"productTitle"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Quantity       int32  `json:"quantity"`
	PricedQuantity int32  `json:"pricedQuantity"`
	UnitPrice      int64  `json:"unitPrice"`
	LineTotal      int64  `json:"lineTotal"`
}

// AppliedPromo describes the promocode used for pricing, with its discount
// value expressed in the view's currency.
type AppliedPromo struct {
	Code          string `json:"code"`
	Kind          string `json:"kind"`
	DiscountValue int64  `json:"discountValue"`
	Discount      int64  `json:"discount"`
}

// View is the priced, currency-converted cart returned to callers.
type View struct {
	CartID     string        `json:"cartId"`
	Currency   string        `json:"currency"`
	TotalPrice int64         `json:"totalPrice"`
	Promocode  *AppliedPromo `json:"promocode,omitempty"`
	Items      []PricedItem  `json:"items"`
}

// lineQuantity clamps a cart line to currently available stock. Pricing never
// counts units the shop cannot deliver.
func lineQuantity(cartQty, stock int32) int32 {
	if stock < 0 {
		return 0
	}
	if cartQty > stock {
		return stock
	}
	if cartQty < 0 {
		return 0
	}
	return cartQty
}

// unitPrice picks the sale price when one is set, otherwise the regular price.
func unitPrice(d store.CartItemDetail) int64 {
	if d.SalePrice.Valid {
		return d.SalePrice.Int64
	}
	return d.Price
}

// EnsureCart loads the user's singleton cart, creating it on first use.
func (s *Service) EnsureCart(ctx context.Context, userID pgtype.UUID) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	cart, err := s.Q.GetCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.Cart{}, err
	}
	return s.Q.CreateCart(ctx, userID)
}

// SetItem adds a SKU to the cart or replaces its quantity. A non-positive
// quantity removes the line.
func (s *Service) SetItem(ctx context.Context, userID, skuID pgtype.UUID, quantity int32) error {
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return s.Q.DeleteCartItem(ctx, cart.ID, skuID)
	}
	if _, err := s.Q.GetProductSku(ctx, skuID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("unknown sku: %w", ErrInvalidInput)
		}
		return err
	}
	_, err = s.Q.UpsertCartItem(ctx, cart.ID, skuID, quantity)
	return err
}

// Clear removes every line from the cart.
func (s *Service) Clear(ctx context.Context, userID pgtype.UUID) error {
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.Q.ClearCartItems(ctx, cart.ID)
}

// RemoveItem drops a SKU line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, skuID pgtype.UUID) error {
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.Q.DeleteCartItem(ctx, cart.ID, skuID)
}

// ApplyPromocode attaches a currently redeemable promocode to the cart.
func (s *Service) ApplyPromocode(ctx context.Context, userID pgtype.UUID, code string) (promo.Rule, error) {
	if s == nil || s.Promo == nil {
		return promo.Rule{}, errors.New("cart service not configured")
	}
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return promo.Rule{}, err
	}
	rule, err := s.Promo.GetByCode(ctx, code, true)
	if err != nil {
		return promo.Rule{}, err
	}
	promoID, err := store.ToUUID(rule.ID)
	if err != nil {
		return promo.Rule{}, err
	}
	if err := s.Q.SetCartPromocode(ctx, cart.ID, promoID); err != nil {
		return promo.Rule{}, err
	}
	return rule, nil
}

// RemovePromocode clears any promocode attached to the cart.
func (s *Service) RemovePromocode(ctx context.Context, userID pgtype.UUID) error {
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.Q.SetCartPromocode(ctx, cart.ID, pgtype.UUID{})
}

// GetPriced builds the priced cart view. Target currency defaults to the
// engine's base; when a conversion is requested and no rate table is
// available the call fails instead of showing unconverted prices. An attached
// promocode that has since become invalid is priced as if absent.
func (s *Service) GetPriced(ctx context.Context, userID pgtype.UUID, targetCurrency string) (View, error) {
	if s == nil || s.Q == nil || s.Currency == nil {
		return View{}, errors.New("cart service not configured")
	}
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.PriceCart(ctx, cart, targetCurrency)
}

// PriceCart prices an already-loaded cart row. The order transaction calls
// this with the same queries bound to its transaction.
func (s *Service) PriceCart(ctx context.Context, cart store.Cart, targetCurrency string) (View, error) {
	return s.priceWith(ctx, s.Q, cart, targetCurrency)
}

// ItemSource lists the detailed cart lines pricing reads. Satisfied by the
// pooled store queries and by transaction-bound ones.
type ItemSource interface {
	ListCartItemsDetailed(ctx context.Context, cartID pgtype.UUID) ([]store.CartItemDetail, error)
}

// PriceCartTx prices the cart against transaction-bound queries so checkout
// sees a consistent snapshot.
func (s *Service) PriceCartTx(ctx context.Context, q ItemSource, cart store.Cart, targetCurrency string) (View, error) {
	return s.priceWith(ctx, q, cart, targetCurrency)
}

func (s *Service) priceWith(ctx context.Context, q ItemSource, cart store.Cart, targetCurrency string) (View, error) {
	if targetCurrency == "" {
		targetCurrency = s.Currency.Base
	}
	details, err := q.ListCartItemsDetailed(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}

	view := View{
		CartID:   store.UUIDString(cart.ID),
		Currency: targetCurrency,
		Items:    make([]PricedItem, 0, len(details)),
	}
	var total int64
	for _, d := range details {
		qty := lineQuantity(d.Quantity, d.Stock)
		price, err := s.Currency.Convert(ctx, unitPrice(d), s.Currency.Base, targetCurrency)
		if err != nil {
			return View{}, err
		}
		line := PricedItem{
			ItemID:         store.UUIDString(d.ItemID),
			ProductSkuID:   store.UUIDString(d.ProductSkuID),
			ProductTitle:   d.ProductTitle,
			Quantity:       d.Quantity,
			PricedQuantity: qty,
			UnitPrice:      price,
			LineTotal:      price * int64(qty),
		}
		if d.ImageURL.Valid {
			line.ImageURL = d.ImageURL.String
		}
		total += line.LineTotal
		view.Items = append(view.Items, line)
	}

	if cart.PromocodeID.Valid && s.Promo != nil {
		rule, err := s.Promo.GetByID(ctx, cart.PromocodeID, true)
		switch {
		case err == nil:
			converted, err := s.Promo.ConvertedRule(ctx, rule, targetCurrency)
			if err != nil {
				return View{}, err
			}
			discounted := converted.Apply(total)
			view.Promocode = &AppliedPromo{
				Code:          rule.Code,
				Kind:          rule.Kind,
				DiscountValue: converted.DiscountValue,
				Discount:      total - discounted,
			}
			total = discounted
		case errors.Is(err, promo.ErrNotYetActive),
			errors.Is(err, promo.ErrExpired),
			errors.Is(err, promo.ErrInactive),
			errors.Is(err, promo.ErrNotFound):
			// stale promocode; price the cart without it
		default:
			return View{}, err
		}
	}

	view.TotalPrice = total
	return view, nil
}
