// Package coupons validates discount codes against a cart total.
package coupons

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/pricing"
)

var (
	ErrNotFound          = errors.New("coupon not found")
	ErrInactive          = errors.New("coupon inactive")
	ErrNotStarted        = errors.New("coupon not yet valid")
	ErrExpired           = errors.New("coupon expired")
	ErrExhausted         = errors.New("coupon usage limit reached")
	ErrMinimumNotMet     = errors.New("cart below coupon minimum")
	ErrInvalidTotal      = errors.New("cart total must be >= 0")
	ErrInvalidCode       = errors.New("coupon code is required")
	ErrInvalidType       = errors.New("coupon type must be PERCENTAGE or FIXED")
	ErrInvalidValue      = errors.New("coupon value must be >= 0")
	ErrPercentageTooHigh = errors.New("percentage cannot exceed 100")
	ErrInvalidMaxUses    = errors.New("maxUses must be >= 1")
	ErrInvalidWindow     = errors.New("startsAt must be before expiresAt")
)

// MinimumError reports the threshold a cart failed to reach.
type MinimumError struct {
	Minimum int64
}

func (e *MinimumError) Error() string {
	return fmt.Sprintf("cart below coupon minimum of %d", e.Minimum)
}

func (e *MinimumError) Unwrap() error { return ErrMinimumNotMet }

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Usable checks the activation window, active flag and usage cap.
func Usable(c models.Coupon, now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrNotStarted
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.MaxUses != nil && c.Uses >= *c.MaxUses {
		return ErrExhausted
	}
	return nil
}

// Evaluate returns the discount a coupon grants on cartTotal. The result never
// exceeds cartTotal.
func Evaluate(c models.Coupon, cartTotal int64, now time.Time) (int64, error) {
	if cartTotal < 0 {
		return 0, ErrInvalidTotal
	}
	if err := Usable(c, now); err != nil {
		return 0, err
	}
	if cartTotal < c.MinPurchase {
		return 0, &MinimumError{Minimum: c.MinPurchase}
	}

	var discount int64
	switch c.Type {
	case models.CouponTypePercentage:
		discount = pricing.Percent(cartTotal, c.Value)
	case models.CouponTypeFixed:
		discount = c.Value
	default:
		return 0, ErrInvalidType
	}

	if discount > cartTotal {
		discount = cartTotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

// Definition is the admin-editable part of a coupon.
type Definition struct {
	Code        string
	Type        string
	Value       int64
	MinPurchase int64
	MaxUses     *int
	StartsAt    *time.Time
	ExpiresAt   *time.Time
}

func ValidateDefinition(d Definition) error {
	if Normalize(d.Code) == "" {
		return ErrInvalidCode
	}
	if d.Type != models.CouponTypePercentage && d.Type != models.CouponTypeFixed {
		return ErrInvalidType
	}
	if d.Value < 0 || d.MinPurchase < 0 {
		return ErrInvalidValue
	}
	if d.Type == models.CouponTypePercentage && d.Value > 100 {
		return ErrPercentageTooHigh
	}
	if d.MaxUses != nil && *d.MaxUses < 1 {
		return ErrInvalidMaxUses
	}
	if d.StartsAt != nil && d.ExpiresAt != nil && !d.StartsAt.Before(*d.ExpiresAt) {
		return ErrInvalidWindow
	}
	return nil
}
