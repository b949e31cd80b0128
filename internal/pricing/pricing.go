// Package pricing holds the integer-peso price arithmetic shared by the
// catalog, checkout and coupon code.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice    = errors.New("price must be greater than 0")
	ErrInvalidDiscount = errors.New("discount must be between 0 and 100")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
)

var hundred = decimal.NewFromInt(100)

func IsDiscounted(discount int) bool {
	return discount > 0 && discount <= 100
}

// EffectivePrice applies the product's own percentage discount and rounds to
// whole pesos, half away from zero.
func EffectivePrice(price int64, discount int) int64 {
	if !IsDiscounted(discount) {
		return price
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(discount))).Div(hundred)
	return decimal.NewFromInt(price).Mul(factor).Round(0).IntPart()
}

// Percent returns round(amount * pct / 100).
func Percent(amount, pct int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(pct)).
		Div(hundred).
		Round(0).
		IntPart()
}

func LineTotal(unit int64, quantity int) int64 {
	return unit * int64(quantity)
}

func ValidatePrice(price int64) error {
	if price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

func ValidateDiscount(discount int) error {
	if discount < 0 || discount > 100 {
		return ErrInvalidDiscount
	}
	return nil
}

// Update carries the optional price fields of a partial product update.
type Update struct {
	Price    *int64
	Discount *int
}

// Resolve merges an update onto the stored values and validates the result.
func Resolve(price int64, discount int, in Update) (int64, int, error) {
	if in.Price != nil {
		price = *in.Price
	}
	if in.Discount != nil {
		discount = *in.Discount
	}
	if err := ValidatePrice(price); err != nil {
		return 0, 0, err
	}
	if err := ValidateDiscount(discount); err != nil {
		return 0, 0, err
	}
	return price, discount, nil
}
