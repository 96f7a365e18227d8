package currency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRatesUnavailable signals that no rate table is cached and none could be
// fetched. Callers surface it as a service-unavailable condition.
var ErrRatesUnavailable = errors.New("currency: exchange rates unavailable")

// Fetcher retrieves a fresh rate table from the upstream provider.
type Fetcher interface {
	FetchRates(ctx context.Context) (Table, error)
}

// Cache is the process-wide rate table with get-or-refresh semantics. The
// table is refreshed lazily on expiry, never on a timer; a cache hit
// short-circuits the network call entirely.
type Cache struct {
	Source Fetcher
	TTL    time.Duration
	Now    func() time.Time

	mu        sync.Mutex
	table     Table
	fetchedAt time.Time
}

func (c *Cache) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cache) ttl() time.Duration {
	if c == nil || c.TTL <= 0 {
		return 24 * time.Hour
	}
	return c.TTL
}

// Get returns the cached table, refreshing it from the source when the TTL
// has elapsed or nothing is cached yet.
func (c *Cache) Get(ctx context.Context) (Table, error) {
	if c == nil {
		return Table{}, ErrRatesUnavailable
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl() {
		return c.table, nil
	}
	if c.Source == nil {
		return Table{}, ErrRatesUnavailable
	}
	table, err := c.Source.FetchRates(ctx)
	if err != nil {
		return Table{}, errors.Join(ErrRatesUnavailable, err)
	}
	c.table = table
	c.fetchedAt = now
	return c.table, nil
}

// Invalidate drops the cached table forcing a refresh on the next Get.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
	c.table = Table{}
}
