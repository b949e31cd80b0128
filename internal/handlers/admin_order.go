package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/catalog"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

var orderStatuses = map[string]bool{
	models.OrderStatusPending:   true,
	models.OrderStatusCompleted: true,
	models.OrderStatusShipped:   true,
	models.OrderStatusCancelled: true,
}

// allowedTransitions lists what an admin may do by hand. Everything else is
// owned by checkout and the payment webhook.
var allowedTransitions = map[string]string{
	models.OrderStatusShipped: models.OrderStatusCompleted,
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func GetAllOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/orders"
		defer handlePanic(c, route)

		page, limit, ok := parsePaginationParams(c, route)
		if !ok {
			return
		}

		filter := bson.M{}
		if status := strings.ToUpper(strings.TrimSpace(c.Query("status"))); status != "" {
			if !orderStatuses[status] {
				respondWithError(c, http.StatusBadRequest, route, "Estado inválido")
				return
			}
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		col := db.Collection(database.Orders)

		total, err := col.CountDocuments(ctx, filter)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)
		cursor, err := col.Find(ctx, filter, opts)
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

		c.JSON(http.StatusOK, gin.H{
			"orders":     orders,
			"pagination": catalog.NewPagination(page, limit, total),
		})
	}
}

func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/orders/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err := db.Collection(database.Orders).FindOne(ctx, bson.M{"_id": id}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Orden no encontrada")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		resp := gin.H{"order": order}
		if order.UserID != nil {
			var user models.User
			err := db.Collection(database.Users).FindOne(ctx, bson.M{"_id": *order.UserID},
				options.FindOne().SetProjection(bson.M{"name": 1, "email": 1}),
			).Decode(&user)
			if err == nil {
				resp["user"] = gin.H{"id": user.ID, "name": user.Name, "email": user.Email}
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// UpdateOrderStatus only moves COMPLETED orders to SHIPPED. The update is
// conditional on the current status so a concurrent change answers 409.
func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /api/admin/orders/:id/status"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}
		var req orderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		target := strings.ToUpper(strings.TrimSpace(req.Status))
		if !orderStatuses[target] {
			respondWithError(c, http.StatusBadRequest, route, "Estado inválido")
			return
		}
		from, allowed := allowedTransitions[target]
		if !allowed {
			respondWithError(c, http.StatusConflict, route, "Transición de estado no permitida")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		col := db.Collection(database.Orders)

		now := time.Now().UTC()
		var order models.Order
		err := col.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "status": from},
			bson.M{"$set": bson.M{"status": target, "shippedAt": now, "updatedAt": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, cerr := col.CountDocuments(ctx, bson.M{"_id": id})
			if cerr != nil {
				respondInternal(c, route, cerr)
				return
			}
			if count == 0 {
				respondWithError(c, http.StatusNotFound, route, "Orden no encontrada")
				return
			}
			respondWithError(c, http.StatusConflict, route, "Transición de estado no permitida")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		requestLogger(c, "order").Info("order status changed",
			zap.String("orderId", id.Hex()), zap.String("status", target))
		c.JSON(http.StatusOK, order)
	}
}
