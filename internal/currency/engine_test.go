package currency

import (
	"context"
	"errors"
	"testing"
)

type staticFetcher struct {
	table Table
	err   error
	calls int
}

func (f *staticFetcher) FetchRates(context.Context) (Table, error) {
	f.calls++
	if f.err != nil {
		return Table{}, f.err
	}
	return f.table, nil
}

func testEngine(fetcher Fetcher) *Engine {
	return &Engine{
		Base:        "USD",
		Multipliers: map[string]int64{"USD": 100, "JPY": 1},
		Rates:       &Cache{Source: fetcher},
	}
}

func TestMultiplier(t *testing.T) {
	e := testEngine(nil)
	if got := e.Multiplier("jpy"); got != 1 {
		t.Fatalf("expected JPY multiplier 1, got %d", got)
	}
	if got := e.Multiplier("EUR"); got != DefaultMultiplier {
		t.Fatalf("expected default multiplier for EUR, got %d", got)
	}
}

func TestMinorMajorRoundTrip(t *testing.T) {
	e := testEngine(nil)
	if got := e.ToMinorUnits(19.99, "USD"); got != 1999 {
		t.Fatalf("expected 1999, got %d", got)
	}
	if got := e.ToMajorUnits(1999, "USD"); got != 19.99 {
		t.Fatalf("expected 19.99, got %v", got)
	}
	if got := e.ToMinorUnits(500, "JPY"); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestConvertIdentitySkipsRates(t *testing.T) {
	// identity conversion must work even when no rate source exists
	e := testEngine(&staticFetcher{err: errors.New("upstream down")})
	got, err := e.Convert(context.Background(), 1234, "usd", "USD")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got != 1234 {
		t.Fatalf("expected 1234, got %d", got)
	}
}

func TestConvertThroughBase(t *testing.T) {
	fetcher := &staticFetcher{table: Table{
		Base:  "USD",
		Rates: map[string]float64{"EUR": 0.5, "JPY": 150},
	}}
	e := testEngine(fetcher)

	got, err := e.Convert(context.Background(), 10000, "USD", "EUR")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}

	// cross rate: EUR -> JPY routes through the base
	got, err = e.Convert(context.Background(), 100, "EUR", "JPY")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got != 30000 {
		t.Fatalf("expected 30000, got %d", got)
	}
}

func TestConvertUnknownCurrency(t *testing.T) {
	fetcher := &staticFetcher{table: Table{
		Base:  "USD",
		Rates: map[string]float64{"EUR": 0.5},
	}}
	e := testEngine(fetcher)

	if _, err := e.Convert(context.Background(), 100, "USD", "XXX"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestConvertFailsWhenRatesUnavailable(t *testing.T) {
	e := testEngine(&staticFetcher{err: errors.New("upstream down")})
	if _, err := e.Convert(context.Background(), 100, "USD", "EUR"); !errors.Is(err, ErrRatesUnavailable) {
		t.Fatalf("expected ErrRatesUnavailable, got %v", err)
	}
}
