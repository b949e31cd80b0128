package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

type mapFinder map[string]models.Coupon

func (m mapFinder) FindByCode(_ context.Context, code string) (models.Coupon, error) {
	c, ok := m[code]
	if !ok {
		return models.Coupon{}, coupons.ErrNotFound
	}
	return c, nil
}

var couponNow = time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC)

func couponRouter() *gin.Engine {
	past := couponNow.Add(-time.Hour)
	exhausted := 5
	finder := mapFinder{
		"SAVE10": {ID: primitive.NewObjectID(), Code: "SAVE10", Type: models.CouponTypePercentage, Value: 10, Active: true},
		"FIXED":  {ID: primitive.NewObjectID(), Code: "FIXED", Type: models.CouponTypeFixed, Value: 5000, MinPurchase: 30000, Active: true},
		"OLD":    {Code: "OLD", Type: models.CouponTypeFixed, Value: 1000, Active: true, ExpiresAt: &past},
		"OFF":    {Code: "OFF", Type: models.CouponTypeFixed, Value: 1000},
		"USED":   {Code: "USED", Type: models.CouponTypeFixed, Value: 1000, Active: true, MaxUses: &exhausted, Uses: 5},
	}
	r := gin.New()
	r.POST("/api/coupons/validate", ValidateCoupon(coupons.NewValidator(finder, func() time.Time { return couponNow })))
	return r
}

func TestValidateCouponPreviewsDiscount(t *testing.T) {
	w := doJSON(t, couponRouter(), http.MethodPost, "/api/coupons/validate", map[string]any{"codigo": " save10 ", "total": 20000})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["valid"])
	coupon := body["coupon"].(map[string]any)
	assert.Equal(t, "SAVE10", coupon["codigo"])
	assert.EqualValues(t, 2000, coupon["descuento"])
}

func TestValidateCouponRejections(t *testing.T) {
	cases := []struct {
		code    string
		total   int64
		status  int
		message string
	}{
		{"NOPE", 10000, http.StatusNotFound, "Cupón no encontrado"},
		{"OFF", 10000, http.StatusBadRequest, "Este cupón no está activo"},
		{"OLD", 10000, http.StatusBadRequest, "Este cupón ha expirado"},
		{"USED", 10000, http.StatusBadRequest, "Este cupón ha alcanzado su límite de usos"},
		{"FIXED", 20000, http.StatusBadRequest, "Este cupón requiere una compra mínima de $30.000"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			w := doJSON(t, couponRouter(), http.MethodPost, "/api/coupons/validate", map[string]any{"codigo": tc.code, "total": tc.total})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, decodeBody(t, w)["message"])
		})
	}
}

func TestValidateCouponRequiresTotal(t *testing.T) {
	w := doJSON(t, couponRouter(), http.MethodPost, "/api/coupons/validate", map[string]any{"codigo": "SAVE10"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCouponCreateRequestValidation(t *testing.T) {
	req := couponCreateRequest{Codigo: " verano ", Tipo: "percentage", Valor: 150}
	_, err := req.toCoupon(couponNow)
	require.ErrorIs(t, err, coupons.ErrPercentageTooHigh)
	assert.Equal(t, "El porcentaje no puede ser mayor a 100%", couponMessage(err))

	req.Valor = 15
	c, err := req.toCoupon(couponNow)
	require.NoError(t, err)
	assert.Equal(t, "VERANO", c.Code)
	assert.Equal(t, models.CouponTypePercentage, c.Type)
	assert.True(t, c.Active)
}

func TestCouponUpdateMergesAndClears(t *testing.T) {
	maxUses := 10
	expires := couponNow.Add(24 * time.Hour)
	existing := models.Coupon{Code: "SAVE", Type: models.CouponTypeFixed, Value: 1000, MaxUses: &maxUses, ExpiresAt: &expires, Active: true}

	zero := 0
	value := int64(2500)
	updated, err := couponUpdateRequest{MaxUsos: &zero, Valor: &value, ClearExpiracion: true}.apply(existing, couponNow)
	require.NoError(t, err)
	assert.Nil(t, updated.MaxUses)
	assert.Nil(t, updated.ExpiresAt)
	assert.EqualValues(t, 2500, updated.Value)
	assert.Equal(t, "SAVE", updated.Code)

	starts := couponNow.Add(48 * time.Hour)
	_, err = couponUpdateRequest{FechaInicio: &starts}.apply(existing, couponNow)
	assert.ErrorIs(t, err, coupons.ErrInvalidWindow)
}
