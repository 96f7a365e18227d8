package currency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownCurrency is returned when no rate is cached for a currency code.
var ErrUnknownCurrency = errors.New("currency: unknown currency code")

// DefaultMultiplier covers two-decimal currencies when no explicit entry exists.
const DefaultMultiplier int64 = 100

// Engine converts between minor-unit integers and human-facing decimal
// amounts, and across currencies through a cached rate table.
type Engine struct {
	// Multipliers maps a currency code to its minor-unit multiplier
	// (100 for USD, 1 for JPY). Missing codes fall back to DefaultMultiplier.
	Multipliers map[string]int64
	// Base is the currency all stored prices are denominated in.
	Base string
	// Rates provides the cached exchange-rate table for conversions.
	Rates *Cache
}

// Multiplier returns the minor-unit multiplier for a currency.
func (e *Engine) Multiplier(code string) int64 {
	if e != nil && e.Multipliers != nil {
		if m, ok := e.Multipliers[normalise(code)]; ok && m > 0 {
			return m
		}
	}
	return DefaultMultiplier
}

// ToMinorUnits rounds a decimal amount into the currency's integer minor units.
func (e *Engine) ToMinorUnits(amount float64, code string) int64 {
	return int64(math.Round(amount * float64(e.Multiplier(code))))
}

// ToMajorUnits converts a minor-unit integer back to its decimal value.
func (e *Engine) ToMajorUnits(amount int64, code string) float64 {
	return float64(amount) / float64(e.Multiplier(code))
}

// Convert translates a minor-unit amount between currencies, routing through
// the base currency of the rate table. Identity conversions never touch the
// table, so they work even when no rates are available.
func (e *Engine) Convert(ctx context.Context, amount int64, from, to string) (int64, error) {
	from = normalise(from)
	to = normalise(to)
	if from == to {
		return amount, nil
	}
	if e == nil || e.Rates == nil {
		return 0, ErrRatesUnavailable
	}
	table, err := e.Rates.Get(ctx)
	if err != nil {
		return 0, err
	}
	rateFrom, err := table.rate(from)
	if err != nil {
		return 0, err
	}
	rateTo, err := table.rate(to)
	if err != nil {
		return 0, err
	}
	inBase := float64(amount) / rateFrom
	return int64(math.Round(inBase * rateTo)), nil
}

// Table is an exchange-rate snapshot relative to a base currency.
type Table struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (t Table) rate(code string) (float64, error) {
	if code == normalise(t.Base) {
		return 1, nil
	}
	r, ok := t.Rates[code]
	if !ok || r <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	return r, nil
}

func normalise(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
