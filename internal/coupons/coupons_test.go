package coupons

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

type stubFinder map[string]models.Coupon

func (s stubFinder) FindByCode(_ context.Context, code string) (models.Coupon, error) {
	c, ok := s[code]
	if !ok {
		return models.Coupon{}, ErrNotFound
	}
	return c, nil
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestValidatePercentageCoupon(t *testing.T) {
	finder := stubFinder{"SAVE10": {
		ID: primitive.NewObjectID(), Code: "SAVE10", Type: models.CouponTypePercentage, Value: 10, Active: true,
	}}
	v := NewValidator(finder, func() time.Time { return now })

	res, err := v.Validate(context.Background(), " save10 ", 20000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(2000), res.Discount)
	assert.Equal(t, "SAVE10", res.Code)
}

func TestValidateUnknownCode(t *testing.T) {
	v := NewValidator(stubFinder{}, nil)
	_, err := v.Validate(context.Background(), "NOPE", 1000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluateClampsToCartTotal(t *testing.T) {
	fixed := models.Coupon{Type: models.CouponTypeFixed, Value: 15000, Active: true}
	got, err := Evaluate(fixed, 9990, now)
	require.NoError(t, err)
	assert.Equal(t, int64(9990), got)

	full := models.Coupon{Type: models.CouponTypePercentage, Value: 100, Active: true}
	got, err = Evaluate(full, 12345, now)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), got)
}

func TestEvaluateRejections(t *testing.T) {
	base := models.Coupon{Type: models.CouponTypeFixed, Value: 1000, Active: true}

	tests := []struct {
		name   string
		mutate func(c *models.Coupon)
		total  int64
		want   error
	}{
		{"inactive", func(c *models.Coupon) { c.Active = false }, 5000, ErrInactive},
		{"not started", func(c *models.Coupon) { c.StartsAt = timePtr(now.Add(time.Hour)) }, 5000, ErrNotStarted},
		{"expired", func(c *models.Coupon) { c.ExpiresAt = timePtr(now.Add(-time.Hour)) }, 5000, ErrExpired},
		{"exhausted", func(c *models.Coupon) { c.MaxUses = intPtr(3); c.Uses = 3 }, 5000, ErrExhausted},
		{"minimum", func(c *models.Coupon) { c.MinPurchase = 10000 }, 5000, ErrMinimumNotMet},
		{"negative total", func(c *models.Coupon) {}, -1, ErrInvalidTotal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			_, err := Evaluate(c, tt.total, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMinimumErrorCarriesThreshold(t *testing.T) {
	c := models.Coupon{Type: models.CouponTypeFixed, Value: 1000, MinPurchase: 15000, Active: true}
	_, err := Evaluate(c, 100, now)

	var minErr *MinimumError
	require.True(t, errors.As(err, &minErr))
	assert.Equal(t, int64(15000), minErr.Minimum)
}

func TestEvaluateUncappedBelowLimit(t *testing.T) {
	c := models.Coupon{Type: models.CouponTypeFixed, Value: 500, Active: true, MaxUses: intPtr(3), Uses: 2}
	got, err := Evaluate(c, 5000, now)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)
}

func TestValidateDefinition(t *testing.T) {
	ok := Definition{Code: "osos", Type: models.CouponTypePercentage, Value: 100}
	assert.NoError(t, ValidateDefinition(ok))

	tooHigh := ok
	tooHigh.Value = 101
	assert.ErrorIs(t, ValidateDefinition(tooHigh), ErrPercentageTooHigh)

	fixedHigh := Definition{Code: "X", Type: models.CouponTypeFixed, Value: 50000}
	assert.NoError(t, ValidateDefinition(fixedHigh))

	badType := Definition{Code: "X", Type: "BOGO", Value: 1}
	assert.ErrorIs(t, ValidateDefinition(badType), ErrInvalidType)

	zeroUses := Definition{Code: "X", Type: models.CouponTypeFixed, Value: 1, MaxUses: intPtr(0)}
	assert.ErrorIs(t, ValidateDefinition(zeroUses), ErrInvalidMaxUses)

	window := Definition{Code: "X", Type: models.CouponTypeFixed, Value: 1, StartsAt: timePtr(now), ExpiresAt: timePtr(now)}
	assert.ErrorIs(t, ValidateDefinition(window), ErrInvalidWindow)

	assert.ErrorIs(t, ValidateDefinition(Definition{Code: "  ", Type: models.CouponTypeFixed}), ErrInvalidCode)
}
