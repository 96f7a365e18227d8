package currency

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCacheServesUntilTTLElapses(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	fetcher := &staticFetcher{table: Table{Base: "USD", Rates: map[string]float64{"EUR": 0.9}}}
	cache := &Cache{
		Source: fetcher,
		TTL:    24 * time.Hour,
		Now:    func() time.Time { return now },
	}

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", fetcher.calls)
	}

	now = now.Add(25 * time.Hour)
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected a refresh after TTL, got %d fetches", fetcher.calls)
	}
}

func TestCacheFailsHardWithoutRates(t *testing.T) {
	cache := &Cache{Source: &staticFetcher{err: errors.New("provider down")}}
	if _, err := cache.Get(context.Background()); !errors.Is(err, ErrRatesUnavailable) {
		t.Fatalf("expected ErrRatesUnavailable, got %v", err)
	}

	var nilSource *Cache
	if _, err := nilSource.Get(context.Background()); !errors.Is(err, ErrRatesUnavailable) {
		t.Fatalf("expected ErrRatesUnavailable from nil cache, got %v", err)
	}
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	fetcher := &staticFetcher{table: Table{Base: "USD", Rates: map[string]float64{"EUR": 0.9}}}
	cache := &Cache{Source: fetcher, TTL: time.Hour}

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cache.Invalidate()
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d fetches", fetcher.calls)
	}
}
