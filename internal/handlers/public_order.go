package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/checkout"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/middleware"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

/* =========================
   REQUEST DTOs
========================= */

type checkoutItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Cantidad  int    `json:"cantidad" binding:"min=0,max=1000"`
	Quantity  int    `json:"quantity" binding:"min=0,max=1000"`
}

func (i checkoutItemRequest) qty() int {
	if i.Cantidad != 0 {
		return i.Cantidad
	}
	return i.Quantity
}

type checkoutRequest struct {
	Items          []checkoutItemRequest `json:"items" binding:"required,min=1,dive"`
	EsInvitado     bool                  `json:"esInvitado"`
	EmailInvitado  string                `json:"emailInvitado"`
	NombreInvitado string                `json:"nombreInvitado"`
	RutInvitado    string                `json:"rutInvitado"`
	Direccion      string                `json:"direccion" binding:"required"`
	Ciudad         string                `json:"ciudad" binding:"required"`
	Region         string                `json:"region" binding:"required"`
	CodigoPostal   string                `json:"codigoPostal"`
	CostoEnvio     *int64                `json:"costoEnvio"`
	CouponID       string                `json:"couponId"`
}

type orderPlacer interface {
	Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

// toCheckoutRequest maps the wire body onto the orchestrator input. A
// verified caller buys as themselves unless they explicitly chose guest
// checkout.
func (r checkoutRequest) toCheckoutRequest(userID *primitive.ObjectID) (checkout.Request, error) {
	req := checkout.Request{
		Shipping: models.ShippingAddress{
			Address:    r.Direccion,
			City:       r.Ciudad,
			Region:     r.Region,
			PostalCode: r.CodigoPostal,
		},
		ShippingCost: r.CostoEnvio,
	}
	if userID != nil && !r.EsInvitado {
		req.UserID = userID
	} else {
		req.Guest = checkout.Guest{Name: r.NombreInvitado, Email: r.EmailInvitado, RUT: r.RutInvitado}
	}

	for _, item := range r.Items {
		id, err := parseObjectID(item.ProductID)
		if err != nil {
			return checkout.Request{}, err
		}
		req.Items = append(req.Items, checkout.Item{ProductID: id, Quantity: item.qty()})
	}

	if strings.TrimSpace(r.CouponID) != "" {
		id, err := parseObjectID(r.CouponID)
		if err != nil {
			return checkout.Request{}, err
		}
		req.CouponID = &id
	}
	return req, nil
}

/* =========================
   CHECKOUT
========================= */

func Checkout(svc orderPlacer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders/checkout"
		defer handlePanic(c, route)

		var body checkoutRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			respondValidationError(c, err)
			return
		}

		var userID *primitive.ObjectID
		if id, ok := middleware.UserID(c); ok {
			userID = &id
		}

		req, err := body.toCheckoutRequest(userID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "ID de producto o cupón inválido")
			return
		}

		result, err := svc.Checkout(c.Request.Context(), req)
		if err != nil {
			respondCheckoutError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"sessionId": result.SessionID,
			"url":       result.SessionURL,
			"orderId":   result.OrderID,
			"total":     result.Total,
		})
	}
}

func respondCheckoutError(c *gin.Context, route string, err error) {
	var stockErr *checkout.StockError
	if errors.As(err, &stockErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message":   "Stock insuficiente para " + stockErr.Name,
			"productId": stockErr.ProductID.Hex(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return
	}
	var productErr *checkout.ProductError
	if errors.As(err, &productErr) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"message":   "Producto no encontrado",
			"productId": productErr.ProductID.Hex(),
		})
		return
	}
	if errors.Is(err, checkout.ErrPaymentUnavailable) {
		requestLogger(c, "order").Error("payment provider failed", zap.Error(err))
		respondWithError(c, http.StatusPaymentRequired, route, "No se pudo iniciar el pago. Intenta nuevamente.")
		return
	}

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondWithError(c, http.StatusBadRequest, route, "El carrito está vacío")
	case errors.Is(err, checkout.ErrInvalidQuantity):
		respondWithError(c, http.StatusBadRequest, route, "La cantidad debe estar entre 1 y 1000")
	case errors.Is(err, checkout.ErrGuestInfoRequired):
		respondWithError(c, http.StatusBadRequest, route, "Nombre y email son requeridos para compras como invitado")
	case errors.Is(err, checkout.ErrInvalidRUT):
		respondWithError(c, http.StatusBadRequest, route, "El RUT ingresado no es válido")
	case errors.Is(err, checkout.ErrDuplicateIdentity):
		respondWithError(c, http.StatusConflict, route, "Ya existe una cuenta con este RUT. Por favor, inicia sesión para continuar.")
	case errors.Is(err, checkout.ErrInvalidShipping):
		respondWithError(c, http.StatusBadRequest, route, "El costo de envío no es válido")
	case errors.Is(err, checkout.ErrNonPositiveTotal):
		respondWithError(c, http.StatusBadRequest, route, "El total de la orden debe ser mayor a 0")
	case errors.Is(err, coupons.ErrNotFound):
		respondWithError(c, http.StatusNotFound, route, "Cupón no encontrado")
	case isCouponRejection(err):
		respondWithError(c, http.StatusBadRequest, route, couponMessage(err))
	default:
		respondInternal(c, route, err)
	}
}

/* =========================
   ORDER HISTORY
========================= */

func GetMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/my-orders"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection(database.Orders).Find(ctx,
			bson.M{"userId": userID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
		)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

// GetOrderBySession backs the checkout success page. Only a summary is
// returned since the session id is the sole credential.
func GetOrderBySession(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/session/:sessionId"
		defer handlePanic(c, route)

		sessionID := strings.TrimSpace(c.Param("sessionId"))
		if sessionID == "" {
			respondWithError(c, http.StatusBadRequest, route, "Sesión inválida")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err := db.Collection(database.Orders).FindOne(ctx, bson.M{"paymentSessionId": sessionID}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Orden no encontrada")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"orderId":      order.ID.Hex(),
			"status":       order.Status,
			"items":        order.Items,
			"subtotal":     order.Subtotal,
			"discount":     order.Discount,
			"shippingCost": order.ShippingCost,
			"total":        order.Total,
			"createdAt":    order.CreatedAt,
		})
	}
}
