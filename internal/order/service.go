package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/cart"
	"github.com/kiosko-dev/backend-kiosko/internal/events"
	"github.com/kiosko-dev/backend-kiosko/internal/obs"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

var (
	// ErrPendingLimit is returned when the user already holds too many unpaid orders.
	ErrPendingLimit = errors.New("pending order limit reached")
	// ErrCartEmpty is returned when no cart line survives the stock filter.
	ErrCartEmpty = errors.New("cart is empty or out of stock")
	// ErrInsufficientStock is returned when a concurrent order won the remaining stock.
	ErrInsufficientStock = errors.New("not enough stock available")
	// ErrPromoExhausted is returned when the promocode quota ran out mid-checkout.
	ErrPromoExhausted = errors.New("promocode usage limit reached")
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
)

// EffectsQuerier is the query subset needed to reverse a cancelled order's
// stock and promocode side effects.
type EffectsQuerier interface {
	DecrementPromocodeUsage(ctx context.Context, id pgtype.UUID) error
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]store.OrderItem, error)
	IncrementSkuStock(ctx context.Context, id pgtype.UUID, qty int32) error
}

// Querier captures the database methods the order flows use.
type Querier interface {
	EffectsQuerier
	CountPendingOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	GetCartByUser(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	ListCartItemsDetailed(ctx context.Context, cartID pgtype.UUID) ([]store.CartItemDetail, error)
	SetCartPromocode(ctx context.Context, cartID, promoID pgtype.UUID) error
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	CreateOrderItem(ctx context.Context, orderID, skuID pgtype.UUID, quantity int32, unitPrice int64) error
	DecrementSkuStock(ctx context.Context, id pgtype.UUID, qty int32) error
	IncrementPromocodeUsage(ctx context.Context, id pgtype.UUID) (bool, error)
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int32) ([]store.Order, error)
	GetLatestPaymentByOrder(ctx context.Context, orderID pgtype.UUID) (store.Payment, error)
	ExpirePendingOrders(ctx context.Context, cutoff time.Time) ([]store.ExpiredOrderRef, error)
	InsertDomainEvent(ctx context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (store.DomainEvent, error)
}

// DB begins transactions whose bound queries satisfy Querier.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, Querier, error)
}

// PoolDB adapts a pgx pool and the store queries to DB.
type PoolDB struct {
	Pool *pgxpool.Pool
	Q    *store.Queries
}

// Begin opens a transaction and binds the queries to it.
func (d PoolDB) Begin(ctx context.Context) (pgx.Tx, Querier, error) {
	tx, err := d.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	return tx, d.Q.WithTx(tx), nil
}

// Addr is the denormalized address snapshot stored on the order.
type Addr struct {
	ReceiverName string `json:"receiverName"`
	Phone        string `json:"phone"`
	Country      string `json:"country"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
}

// Input carries the checkout request.
type Input struct {
	Currency        string `json:"currency"`
	BillingAddress  Addr   `json:"billingAddress"`
	DeliveryAddress Addr   `json:"deliveryAddress"`
}

// Service runs the cart-to-order transaction.
type Service struct {
	Q          Querier
	DB         DB
	Cart       *cart.Service
	Log        zerolog.Logger
	MaxPending int
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) maxPending() int64 {
	if s == nil || s.MaxPending <= 0 {
		return 3
	}
	return int64(s.MaxPending)
}

// Checkout converts the user's cart into a pending order. Stock decrements,
// order rows and the promocode counter land in one transaction; the
// non-negative stock constraint is the backstop when two checkouts race for
// the same SKU.
func (s *Service) Checkout(ctx context.Context, userID pgtype.UUID, in Input) (store.Order, error) {
	if s == nil || s.Q == nil || s.DB == nil || s.Cart == nil {
		return store.Order{}, errors.New("order service not configured")
	}

	// Soft cap, checked outside the transaction. Two simultaneous checkouts
	// from one user can both pass; acceptable for a display-tier limit.
	pending, err := s.Q.CountPendingOrdersByUser(ctx, userID)
	if err != nil {
		return store.Order{}, err
	}
	if pending >= s.maxPending() {
		return store.Order{}, ErrPendingLimit
	}

	billing, err := json.Marshal(in.BillingAddress)
	if err != nil {
		return store.Order{}, fmt.Errorf("marshal billing address: %w", err)
	}
	delivery, err := json.Marshal(in.DeliveryAddress)
	if err != nil {
		return store.Order{}, fmt.Errorf("marshal delivery address: %w", err)
	}

	tx, qtx, err := s.DB.Begin(ctx)
	if err != nil {
		return store.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartRow, err := qtx.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, ErrCartEmpty
		}
		return store.Order{}, err
	}

	view, err := s.Cart.PriceCartTx(ctx, qtx, cartRow, in.Currency)
	if err != nil {
		return store.Order{}, err
	}
	details, err := qtx.ListCartItemsDetailed(ctx, cartRow.ID)
	if err != nil {
		return store.Order{}, err
	}
	lines := BuildLines(details)
	if len(lines) == 0 {
		return store.Order{}, ErrCartEmpty
	}

	var promoID pgtype.UUID
	if view.Promocode != nil {
		promoID = cartRow.PromocodeID
	}

	created, err := qtx.CreateOrder(ctx, store.CreateOrderParams{
		Number:          NewNumber(s.now()),
		UserID:          userID,
		Currency:        view.Currency,
		Total:           view.TotalPrice,
		PromocodeID:     promoID,
		BillingAddress:  billing,
		DeliveryAddress: delivery,
	})
	if err != nil {
		return store.Order{}, err
	}

	if promoID.Valid {
		// Single-use per cart: detach before the order commits.
		if err := qtx.SetCartPromocode(ctx, cartRow.ID, pgtype.UUID{}); err != nil {
			return store.Order{}, err
		}
	}

	for _, line := range lines {
		if err := qtx.CreateOrderItem(ctx, created.ID, line.ProductSkuID, line.Quantity, line.UnitPrice); err != nil {
			return store.Order{}, err
		}
		if err := qtx.DecrementSkuStock(ctx, line.ProductSkuID, line.Quantity); err != nil {
			if isStockConstraintViolation(err) {
				obs.IncStockConflict()
				s.Log.Warn().
					Str("user_id", store.UUIDString(userID)).
					Str("sku_id", store.UUIDString(line.ProductSkuID)).
					Msg("checkout_lost_stock_race")
				return store.Order{}, ErrInsufficientStock
			}
			return store.Order{}, err
		}
	}

	if promoID.Valid {
		ok, err := qtx.IncrementPromocodeUsage(ctx, promoID)
		if err != nil {
			return store.Order{}, err
		}
		if !ok {
			s.Log.Warn().
				Str("user_id", store.UUIDString(userID)).
				Str("promocode_id", store.UUIDString(promoID)).
				Msg("checkout_lost_promo_race")
			return store.Order{}, ErrPromoExhausted
		}
	}

	// A failed insert would poison the transaction anyway, so surface it here
	// rather than as a commit error.
	if err := events.PublishTx(ctx, qtx, s.Log, events.TopicOrderCreated, created.ID, map[string]any{
		"number": created.Number, "total": created.Total, "currency": created.Currency,
	}); err != nil {
		return store.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Order{}, err
	}
	obs.IncOrderCreated()
	s.Log.Info().
		Str("order_id", store.UUIDString(created.ID)).
		Str("number", created.Number).
		Int64("total", created.Total).
		Msg("order_created")
	return created, nil
}

// Get loads an order owned by the user.
func (s *Service) Get(ctx context.Context, userID, orderID pgtype.UUID) (store.Order, []store.OrderItem, error) {
	o, err := s.Q.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, nil, ErrNotFound
		}
		return store.Order{}, nil, err
	}
	if !store.UUIDEqual(o.UserID, userID) {
		return store.Order{}, nil, ErrNotFound
	}
	items, err := s.Q.ListOrderItems(ctx, orderID)
	if err != nil {
		return store.Order{}, nil, err
	}
	return o, items, nil
}

// LatestPayment returns the newest payment attempt for the order, if any.
func (s *Service) LatestPayment(ctx context.Context, orderID pgtype.UUID) (store.Payment, bool, error) {
	p, err := s.Q.GetLatestPaymentByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Payment{}, false, nil
		}
		return store.Payment{}, false, err
	}
	return p, true, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID pgtype.UUID, page, perPage int) ([]store.Order, error) {
	offset := (page - 1) * perPage
	if offset < 0 {
		offset = 0
	}
	return s.Q.ListOrdersByUser(ctx, userID, int32(perPage), int32(offset))
}

// ReverseEffects undoes the inventory and promocode side effects of a
// cancelled order. Must run on the same transaction that cancelled it.
func ReverseEffects(ctx context.Context, q EffectsQuerier, ref store.ExpiredOrderRef) error {
	if ref.PromocodeID.Valid {
		if err := q.DecrementPromocodeUsage(ctx, ref.PromocodeID); err != nil {
			return err
		}
	}
	items, err := q.ListOrderItems(ctx, ref.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := q.IncrementSkuStock(ctx, it.ProductSkuID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func isStockConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation
}
