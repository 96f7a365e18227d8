package order

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiosko-dev/backend-kiosko/internal/events"
	"github.com/kiosko-dev/backend-kiosko/internal/obs"
)

// Reaper cancels pending orders that outlived the payment window and
// reverses their stock and promocode side effects.
type Reaper struct {
	DB  DB
	TTL time.Duration
	Log zerolog.Logger
	Now func() time.Time
}

func (r *Reaper) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reaper) ttl() time.Duration {
	if r == nil || r.TTL <= 0 {
		return 30 * time.Minute
	}
	return r.TTL
}

// Run performs one reap tick in a single transaction and returns how many
// orders were cancelled. Safe to call concurrently with checkouts and
// captures; the status precondition on the bulk update makes racing writers
// lose cleanly.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	if r == nil || r.DB == nil {
		return 0, errors.New("reaper not configured")
	}
	cutoff := r.now().Add(-r.ttl())

	tx, qtx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	refs, err := qtx.ExpirePendingOrders(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, ref := range refs {
		if err := ReverseEffects(ctx, qtx, ref); err != nil {
			return 0, err
		}
		if err := events.PublishTx(ctx, qtx, r.Log, events.TopicOrderCancelled, ref.ID, map[string]any{
			"reason": "payment_window_expired",
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	if len(refs) > 0 {
		obs.AddOrdersReaped(len(refs))
		r.Log.Info().Int("count", len(refs)).Time("cutoff", cutoff).Msg("orders_reaped")
	}
	return len(refs), nil
}
