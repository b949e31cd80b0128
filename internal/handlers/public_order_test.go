package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/checkout"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/middleware"
)

type fakePlacer struct {
	got    checkout.Request
	result checkout.Result
	err    error
}

func (f *fakePlacer) Checkout(_ context.Context, req checkout.Request) (checkout.Result, error) {
	f.got = req
	return f.result, f.err
}

func checkoutRouter(placer orderPlacer, userID *primitive.ObjectID) *gin.Engine {
	r := gin.New()
	r.POST("/api/orders/checkout", func(c *gin.Context) {
		if userID != nil {
			c.Set(middleware.UserIDKey, *userID)
		}
		c.Next()
	}, Checkout(placer))
	return r
}

func checkoutBody(productID primitive.ObjectID) map[string]any {
	return map[string]any{
		"items":          []map[string]any{{"productId": productID.Hex(), "cantidad": 2}},
		"emailInvitado":  "ana@example.cl",
		"nombreInvitado": "Ana",
		"direccion":      "Av. Siempre Viva 742",
		"ciudad":         "Santiago",
		"region":         "Metropolitana",
	}
}

func TestCheckoutGuestSuccess(t *testing.T) {
	productID := primitive.NewObjectID()
	placer := &fakePlacer{result: checkout.Result{OrderID: "o1", SessionID: "cs_1", SessionURL: "https://pay", Total: 25000}}

	w := doJSON(t, checkoutRouter(placer, nil), http.MethodPost, "/api/orders/checkout", checkoutBody(productID))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "cs_1", body["sessionId"])
	assert.Equal(t, "https://pay", body["url"])
	assert.EqualValues(t, 25000, body["total"])

	assert.Nil(t, placer.got.UserID)
	assert.Equal(t, "Ana", placer.got.Guest.Name)
	require.Len(t, placer.got.Items, 1)
	assert.Equal(t, productID, placer.got.Items[0].ProductID)
	assert.Equal(t, 2, placer.got.Items[0].Quantity)
	assert.Nil(t, placer.got.ShippingCost)
}

func TestCheckoutUsesAuthenticatedUserUnlessGuestChosen(t *testing.T) {
	userID := primitive.NewObjectID()
	productID := primitive.NewObjectID()

	placer := &fakePlacer{}
	w := doJSON(t, checkoutRouter(placer, &userID), http.MethodPost, "/api/orders/checkout", checkoutBody(productID))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, placer.got.UserID)
	assert.Equal(t, userID, *placer.got.UserID)
	assert.Empty(t, placer.got.Guest.Email)

	body := checkoutBody(productID)
	body["esInvitado"] = true
	w = doJSON(t, checkoutRouter(placer, &userID), http.MethodPost, "/api/orders/checkout", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, placer.got.UserID)
	assert.Equal(t, "ana@example.cl", placer.got.Guest.Email)
}

func TestCheckoutRejectsMalformedIDs(t *testing.T) {
	body := checkoutBody(primitive.NewObjectID())
	body["couponId"] = "not-an-id"

	w := doJSON(t, checkoutRouter(&fakePlacer{}, nil), http.MethodPost, "/api/orders/checkout", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutRequiresItems(t *testing.T) {
	body := checkoutBody(primitive.NewObjectID())
	body["items"] = []any{}

	w := doJSON(t, checkoutRouter(&fakePlacer{}, nil), http.MethodPost, "/api/orders/checkout", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Datos inválidos", decodeBody(t, w)["message"])
}

func TestCheckoutRejectsQuantityOutOfRange(t *testing.T) {
	for _, qty := range []int{-1, 1001, 9223372036854775807} {
		body := checkoutBody(primitive.NewObjectID())
		body["items"] = []map[string]any{{"productId": primitive.NewObjectID().Hex(), "cantidad": qty}}

		placer := &fakePlacer{}
		w := doJSON(t, checkoutRouter(placer, nil), http.MethodPost, "/api/orders/checkout", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "cantidad %d", qty)
		assert.Empty(t, placer.got.Items)
	}
}

func TestCheckoutErrorMapping(t *testing.T) {
	productID := primitive.NewObjectID()

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"payment", errors.Join(checkout.ErrPaymentUnavailable, errors.New("stripe down")), http.StatusPaymentRequired, "No se pudo iniciar el pago. Intenta nuevamente."},
		{"duplicate rut", checkout.ErrDuplicateIdentity, http.StatusConflict, "Ya existe una cuenta con este RUT. Por favor, inicia sesión para continuar."},
		{"missing product", &checkout.ProductError{ProductID: productID}, http.StatusNotFound, "Producto no encontrado"},
		{"guest info", checkout.ErrGuestInfoRequired, http.StatusBadRequest, "Nombre y email son requeridos para compras como invitado"},
		{"coupon missing", coupons.ErrNotFound, http.StatusNotFound, "Cupón no encontrado"},
		{"coupon expired", coupons.ErrExpired, http.StatusBadRequest, "Este cupón ha expirado"},
		{"coupon minimum", &coupons.MinimumError{Minimum: 30000}, http.StatusBadRequest, "Este cupón requiere una compra mínima de $30.000"},
		{"quantity", checkout.ErrInvalidQuantity, http.StatusBadRequest, "La cantidad debe estar entre 1 y 1000"},
		{"total", checkout.ErrNonPositiveTotal, http.StatusBadRequest, "El total de la orden debe ser mayor a 0"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Error interno del servidor"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, checkoutRouter(&fakePlacer{err: tc.err}, nil), http.MethodPost, "/api/orders/checkout", checkoutBody(productID))
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, decodeBody(t, w)["message"])
		})
	}
}

func TestCheckoutStockErrorDetails(t *testing.T) {
	productID := primitive.NewObjectID()
	placer := &fakePlacer{err: &checkout.StockError{ProductID: productID, Name: "Osito Lua", Available: 1, Requested: 2}}

	w := doJSON(t, checkoutRouter(placer, nil), http.MethodPost, "/api/orders/checkout", checkoutBody(productID))
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "Stock insuficiente para Osito Lua", body["message"])
	assert.Equal(t, productID.Hex(), body["productId"])
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 2, body["requested"])
}
