package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

type newsletterRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Subscribe reactivates a previously unsubscribed address instead of
// creating a second record.
func Subscribe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/newsletter/subscribe"
		defer handlePanic(c, route)

		var req newsletterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		email := normalizeEmail(req.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		col := db.Collection(database.Subscribers)
		now := time.Now().UTC()

		var existing models.Subscriber
		err := col.FindOne(ctx, bson.M{"email": email}).Decode(&existing)
		switch {
		case err == nil && existing.Active:
			respondWithError(c, http.StatusConflict, route, "Este email ya está suscrito")
			return
		case err == nil:
			if _, err := col.UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{"active": true, "updatedAt": now}}); err != nil {
				respondInternal(c, route, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"message":     "¡Bienvenido de vuelta! Tu suscripción ha sido reactivada.",
				"reactivated": true,
			})
			return
		case !errors.Is(err, mongo.ErrNoDocuments):
			respondInternal(c, route, err)
			return
		}

		_, err = col.InsertOne(ctx, models.Subscriber{Email: email, Active: true, CreatedAt: now, UpdatedAt: now})
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "Este email ya está suscrito")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "¡Gracias por suscribirte! Recibirás nuestras mejores ofertas."})
	}
}

func Unsubscribe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/newsletter/unsubscribe"
		defer handlePanic(c, route)

		var req newsletterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.Subscribers).UpdateOne(ctx,
			bson.M{"email": normalizeEmail(req.Email)},
			bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}},
		)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Email no encontrado en la lista")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Te has desuscrito exitosamente. Lamentamos verte partir."})
	}
}

/* ===== Admin ===== */

func GetSubscribers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/newsletter/admin/subscribers"
		defer handlePanic(c, route)

		filter := bson.M{}
		if raw := c.Query("activo"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "Parámetro activo inválido")
				return
			}
			filter["active"] = active
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		col := db.Collection(database.Subscribers)

		cursor, err := col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		subscribers := make([]models.Subscriber, 0)
		if err := cursor.All(ctx, &subscribers); err != nil {
			respondInternal(c, route, err)
			return
		}

		total, err := col.CountDocuments(ctx, bson.M{})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		active, err := col.CountDocuments(ctx, bson.M{"active": true})
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"subscribers": subscribers,
			"stats": gin.H{
				"total":     total,
				"activos":   active,
				"inactivos": total - active,
			},
		})
	}
}

func DeleteSubscriber(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/newsletter/admin/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.Subscribers).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Suscriptor no encontrado")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Suscriptor eliminado permanentemente"})
	}
}

type subscriberExport struct {
	Emails     []string `json:"emails"`
	Count      int      `json:"count"`
	CSVFormat  string   `json:"csvFormat"`
	ListFormat string   `json:"listFormat"`
}

func newSubscriberExport(emails []string) subscriberExport {
	if emails == nil {
		emails = []string{}
	}
	return subscriberExport{
		Emails:     emails,
		Count:      len(emails),
		CSVFormat:  strings.Join(emails, ","),
		ListFormat: strings.Join(emails, "\n"),
	}
}

// ExportSubscribers lists active addresses only.
func ExportSubscribers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/newsletter/admin/export"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection(database.Subscribers).Find(ctx, bson.M{"active": true},
			options.Find().SetProjection(bson.M{"email": 1}).SetSort(bson.D{{Key: "createdAt", Value: 1}}))
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		var rows []models.Subscriber
		if err := cursor.All(ctx, &rows); err != nil {
			respondInternal(c, route, err)
			return
		}
		emails := make([]string, 0, len(rows))
		for _, r := range rows {
			emails = append(emails, r.Email)
		}
		c.JSON(http.StatusOK, newSubscriberExport(emails))
	}
}
