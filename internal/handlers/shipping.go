package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/shipping"
)

type shippingCalculateRequest struct {
	Ciudad string `json:"ciudad" binding:"required"`
	Region string `json:"region"`
}

type shippingEstimateRequest struct {
	Address string `json:"address"`
	Comune  string `json:"comune" binding:"required"`
}

type shippingEstimator interface {
	Estimate(ctx context.Context, address, comune string) shipping.Estimate
}

// CalculateShipping prices a destination with the flat comune/region table.
func CalculateShipping() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/shipping/calculate"
		defer handlePanic(c, route)

		var req shippingCalculateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		region := req.Region
		if strings.TrimSpace(region) == "" {
			region = "Metropolitana"
		}
		c.JSON(http.StatusOK, shipping.EstimateByComune(req.Ciudad, region))
	}
}

// EstimateShipping geocodes the address. It always answers 200; an address
// that cannot be priced comes back with zone "manual".
func EstimateShipping(estimator shippingEstimator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/shipping/estimate"
		defer handlePanic(c, route)

		var req shippingEstimateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		c.JSON(http.StatusOK, estimator.Estimate(ctx, strings.TrimSpace(req.Address), strings.TrimSpace(req.Comune)))
	}
}
