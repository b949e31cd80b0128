package coupons

import (
	"context"
	"time"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

// Finder loads a coupon by its normalized code, returning ErrNotFound when absent.
type Finder interface {
	FindByCode(ctx context.Context, code string) (models.Coupon, error)
}

type Result struct {
	Valid    bool   `json:"valid"`
	CouponID string `json:"couponId"`
	Code     string `json:"code"`
	Type     string `json:"type"`
	Value    int64  `json:"value"`
	Discount int64  `json:"discount"`
}

// Validator has no side effects; usage is only counted when an order is placed.
type Validator struct {
	finder Finder
	clock  func() time.Time
}

func NewValidator(finder Finder, clock func() time.Time) *Validator {
	if clock == nil {
		clock = time.Now
	}
	return &Validator{finder: finder, clock: clock}
}

func (v *Validator) Validate(ctx context.Context, code string, cartTotal int64) (Result, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return Result{}, ErrInvalidCode
	}
	if cartTotal < 0 {
		return Result{}, ErrInvalidTotal
	}

	coupon, err := v.finder.FindByCode(ctx, normalized)
	if err != nil {
		return Result{}, err
	}

	discount, err := Evaluate(coupon, cartTotal, v.clock())
	if err != nil {
		return Result{}, err
	}

	return Result{
		Valid:    true,
		CouponID: coupon.ID.Hex(),
		Code:     coupon.Code,
		Type:     coupon.Type,
		Value:    coupon.Value,
		Discount: discount,
	}, nil
}
