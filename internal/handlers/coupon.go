package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/mailer"
)

type validateCouponRequest struct {
	Codigo string `json:"codigo" binding:"required"`
	Total  *int64 `json:"total" binding:"required"`
}

type couponValidator interface {
	Validate(ctx context.Context, code string, cartTotal int64) (coupons.Result, error)
}

func isCouponRejection(err error) bool {
	for _, target := range []error{
		coupons.ErrInactive,
		coupons.ErrNotStarted,
		coupons.ErrExpired,
		coupons.ErrExhausted,
		coupons.ErrMinimumNotMet,
		coupons.ErrInvalidTotal,
		coupons.ErrInvalidCode,
		coupons.ErrInvalidType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func couponMessage(err error) string {
	var minErr *coupons.MinimumError
	switch {
	case errors.As(err, &minErr):
		return "Este cupón requiere una compra mínima de " + mailer.FormatCLP(minErr.Minimum)
	case errors.Is(err, coupons.ErrInactive):
		return "Este cupón no está activo"
	case errors.Is(err, coupons.ErrNotStarted):
		return "Este cupón aún no está disponible"
	case errors.Is(err, coupons.ErrExpired):
		return "Este cupón ha expirado"
	case errors.Is(err, coupons.ErrExhausted):
		return "Este cupón ha alcanzado su límite de usos"
	case errors.Is(err, coupons.ErrInvalidTotal):
		return "El total debe ser un número válido"
	case errors.Is(err, coupons.ErrInvalidCode):
		return "El código del cupón es requerido"
	case errors.Is(err, coupons.ErrInvalidType):
		return "Tipo de cupón inválido"
	case errors.Is(err, coupons.ErrInvalidValue):
		return "El valor debe ser positivo"
	case errors.Is(err, coupons.ErrPercentageTooHigh):
		return "El porcentaje no puede ser mayor a 100%"
	case errors.Is(err, coupons.ErrInvalidMaxUses):
		return "El máximo de usos debe ser al menos 1"
	case errors.Is(err, coupons.ErrInvalidWindow):
		return "La fecha de inicio debe ser anterior a la de expiración"
	default:
		return "Cupón inválido"
	}
}

// ValidateCoupon previews a coupon against a cart total. It never consumes a use.
func ValidateCoupon(v couponValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/coupons/validate"
		defer handlePanic(c, route)

		var req validateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		result, err := v.Validate(c.Request.Context(), req.Codigo, *req.Total)
		switch {
		case err == nil:
		case errors.Is(err, coupons.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "Cupón no encontrado")
			return
		case isCouponRejection(err):
			respondWithError(c, http.StatusBadRequest, route, couponMessage(err))
			return
		default:
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"valid": true,
			"coupon": gin.H{
				"id":        result.CouponID,
				"codigo":    result.Code,
				"tipo":      result.Type,
				"valor":     result.Value,
				"descuento": result.Discount,
			},
		})
	}
}
