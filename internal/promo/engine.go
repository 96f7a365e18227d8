package promo

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrNotFound is returned when no promocode matches the given code or id.
	ErrNotFound = errors.New("promocode not found")
	// ErrNotYetActive is returned when the validity window has not opened.
	ErrNotYetActive = errors.New("Promocode is not active yet")
	// ErrExpired is returned when the validity window has closed.
	ErrExpired = errors.New("Promocode is expired")
	// ErrInactive is returned when the usage quota is exhausted.
	ErrInactive = errors.New("Promocode is inactive")
)

// Kind enumerates the supported discount types.
const (
	KindFixed   = "fixed"
	KindPercent = "percent"
)

// Rule is the runtime view of a promocode used for validation and discount
// computation. It is a pure value; all I/O happens in the service.
type Rule struct {
	ID            string
	Code          string
	Kind          string
	DiscountValue int64
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    int32
	UsageCount    int32
}

// Validate reports whether the rule is redeemable at the provided instant.
// Exhausted usage makes the rule inactive regardless of the validity window.
func (r Rule) Validate(now time.Time) error {
	if r.UsageCount >= r.UsageLimit {
		return ErrInactive
	}
	if now.Before(r.ValidFrom) {
		return ErrNotYetActive
	}
	if now.After(r.ValidTo) {
		return ErrExpired
	}
	return nil
}

// Apply returns the amount after the discount, never below zero. Percent
// discounts round half away from zero; fixed discounts subtract the value
// as-is (callers convert it to the amount's currency first).
func (r Rule) Apply(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	var discounted int64
	switch r.Kind {
	case KindPercent:
		discount := int64(math.Round(float64(amount) * float64(r.DiscountValue) / 100))
		discounted = amount - discount
	default:
		discounted = amount - r.DiscountValue
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}

// Discount returns the absolute discount Apply would take off the amount.
func (r Rule) Discount(amount int64) int64 {
	return amount - r.Apply(amount)
}
