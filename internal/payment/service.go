package payment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/events"
	"github.com/kiosko-dev/backend-kiosko/internal/obs"
	"github.com/kiosko-dev/backend-kiosko/internal/order"
	"github.com/kiosko-dev/backend-kiosko/internal/store"
)

var (
	// ErrNotFound is returned when no payment matches the session.
	ErrNotFound = errors.New("payment not found")
	// ErrOrderNotPending rejects operations on orders past the pending state.
	ErrOrderNotPending = errors.New("order is not awaiting payment")
	// ErrPaymentNotPending rejects captures of settled payment attempts.
	ErrPaymentNotPending = errors.New("payment is not pending")
	// ErrOrderExpired is returned when the payment window has closed.
	ErrOrderExpired = errors.New("order payment window expired")
	// ErrNotPaid is returned when the gateway reports the session unpaid.
	ErrNotPaid = errors.New("payment not completed")
)

// Querier captures the database methods the payment bridge uses.
type Querier interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (store.Payment, error)
	CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id pgtype.UUID, status store.PaymentStatus) error
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, to, from store.OrderStatus) (bool, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]store.OrderItem, error)
	DecrementPromocodeUsage(ctx context.Context, id pgtype.UUID) error
	IncrementSkuStock(ctx context.Context, id pgtype.UUID, qty int32) error
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

// Service bridges orders to the external payment gateway.
type Service struct {
	Q          Querier
	DB         DB
	Gateway    Gateway
	Bus        *events.Bus
	TTL        time.Duration
	Log        zerolog.Logger
	Now        func() time.Time
	SuccessURL string
	CancelURL  string
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 30 * time.Minute
	}
	return s.TTL
}

func (s *Service) orderExpired(o store.Order) bool {
	if !o.CreatedAt.Valid {
		return false
	}
	return order.IsExpired(o.CreatedAt.Time, s.ttl(), s.now())
}

// CreateSession opens a gateway checkout session for a pending, unexpired
// order and records the attempt as a pending payment.
func (s *Service) CreateSession(ctx context.Context, userID, orderID pgtype.UUID) (store.Payment, error) {
	if s == nil || s.Q == nil || s.Gateway == nil {
		return store.Payment{}, errors.New("payment service not configured")
	}
	o, err := s.Q.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Payment{}, order.ErrNotFound
		}
		return store.Payment{}, err
	}
	if !store.UUIDEqual(o.UserID, userID) {
		return store.Payment{}, order.ErrNotFound
	}
	if o.Status != store.OrderStatusPending {
		return store.Payment{}, ErrOrderNotPending
	}
	if s.orderExpired(o) {
		return store.Payment{}, ErrOrderExpired
	}

	sess, err := s.Gateway.CreateSession(ctx, SessionRequest{
		OrderNumber: o.Number,
		Amount:      o.Total,
		Currency:    o.Currency,
		SuccessURL:  s.SuccessURL,
		CancelURL:   s.CancelURL,
	})
	if err != nil {
		obs.IncGatewayCall("create_session", "error")
		s.Log.Error().Err(err).Str("order_id", store.UUIDString(o.ID)).Msg("gateway_session_failed")
		return store.Payment{}, err
	}
	obs.IncGatewayCall("create_session", "ok")

	p, err := s.Q.CreatePayment(ctx, store.CreatePaymentParams{
		OrderID:     o.ID,
		SessionID:   sess.ID,
		Amount:      o.Total,
		Currency:    o.Currency,
		RedirectURL: pgtype.Text{String: sess.RedirectURL, Valid: true},
	})
	if err != nil {
		return store.Payment{}, err
	}
	s.Log.Info().
		Str("order_id", store.UUIDString(o.ID)).
		Str("session_id", sess.ID).
		Msg("payment_session_created")
	return p, nil
}

// Capture settles a checkout session. A paid session transitions order and
// payment atomically; an expired order is cancelled with its side effects
// reversed; anything else fails without mutating the order.
func (s *Service) Capture(ctx context.Context, sessionID string) (store.Payment, error) {
	if s == nil || s.Q == nil || s.DB == nil || s.Gateway == nil {
		return store.Payment{}, errors.New("payment service not configured")
	}
	p, err := s.Q.GetPaymentBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Payment{}, ErrNotFound
		}
		return store.Payment{}, err
	}
	if p.Status != store.PaymentStatusPending {
		return store.Payment{}, ErrPaymentNotPending
	}
	o, err := s.Q.GetOrderByID(ctx, p.OrderID)
	if err != nil {
		return store.Payment{}, err
	}
	if o.Status != store.OrderStatusPending {
		return store.Payment{}, ErrOrderNotPending
	}

	if s.orderExpired(o) {
		if err := s.cancelExpired(ctx, o, p); err != nil {
			return store.Payment{}, err
		}
		return store.Payment{}, ErrOrderExpired
	}

	state, err := s.Gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		obs.IncGatewayCall("retrieve_session", "error")
		return store.Payment{}, err
	}
	obs.IncGatewayCall("retrieve_session", "ok")

	if !state.Paid {
		status := store.PaymentStatusFailed
		topic := events.TopicPaymentFailed
		if state.Expired {
			status = store.PaymentStatusExpired
			topic = events.TopicPaymentExpired
		}
		if err := s.Q.UpdatePaymentStatus(ctx, p.ID, status); err != nil {
			return store.Payment{}, err
		}
		s.Log.Warn().
			Str("session_id", sessionID).
			Str("gateway_status", state.Status).
			Msg("capture_not_paid")
		s.Bus.Publish(ctx, topic, p.ID, map[string]any{"session_id": sessionID, "status": state.Status})
		return store.Payment{}, ErrNotPaid
	}

	tx, qtx, err := s.DB.Begin(ctx)
	if err != nil {
		return store.Payment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := qtx.TransitionOrderStatus(ctx, o.ID, store.OrderStatusPaid, store.OrderStatusPending)
	if err != nil {
		return store.Payment{}, err
	}
	if !ok {
		// the reaper or another capture got there first
		return store.Payment{}, ErrOrderNotPending
	}
	if err := qtx.UpdatePaymentStatus(ctx, p.ID, store.PaymentStatusCompleted); err != nil {
		return store.Payment{}, err
	}
	if err := events.PublishTx(ctx, qtx, s.Log, events.TopicOrderPaid, o.ID, map[string]any{
		"number": o.Number, "session_id": sessionID,
	}); err != nil {
		return store.Payment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.Payment{}, err
	}

	p.Status = store.PaymentStatusCompleted
	s.Log.Info().
		Str("order_id", store.UUIDString(o.ID)).
		Str("session_id", sessionID).
		Msg("payment_captured")
	return p, nil
}

// cancelExpired cancels an expired pending order at capture time, reversing
// stock and promocode effects so the reaper has nothing left to do.
func (s *Service) cancelExpired(ctx context.Context, o store.Order, p store.Payment) error {
	tx, qtx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := qtx.TransitionOrderStatus(ctx, o.ID, store.OrderStatusCancelled, store.OrderStatusPending)
	if err != nil {
		return err
	}
	if ok {
		if err := order.ReverseEffects(ctx, qtx, store.ExpiredOrderRef{ID: o.ID, PromocodeID: o.PromocodeID}); err != nil {
			return err
		}
	}
	if err := qtx.UpdatePaymentStatus(ctx, p.ID, store.PaymentStatusExpired); err != nil {
		return err
	}
	if err := events.PublishTx(ctx, qtx, s.Log, events.TopicOrderCancelled, o.ID, map[string]any{
		"reason": "expired_at_capture",
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.Log.Info().
		Str("order_id", store.UUIDString(o.ID)).
		Str("session_id", p.SessionID).
		Msg("order_cancelled_at_capture")
	return nil
}
