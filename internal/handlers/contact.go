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

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/mailer"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/rut"
)

const contactMessageMax = 5000

type contactRequest struct {
	Nombre  string `json:"nombre" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Mensaje string `json:"mensaje" binding:"required"`
	RUT     string `json:"rut" binding:"omitempty,rut"`
}

// SubmitContact stores the message as a suggestion and notifies the shop
// owner. A failed notification does not fail the request.
func SubmitContact(db *mongo.Database, sender mailer.Sender, adminEmail string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/contact"
		defer handlePanic(c, route)
		log := requestLogger(c, "contact")

		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		suggestion := models.Suggestion{
			Name:      sanitizeText(req.Nombre),
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			Message:   sanitizeText(req.Mensaje),
			CreatedAt: time.Now().UTC(),
		}
		if suggestion.Name == "" || suggestion.Message == "" {
			respondWithError(c, http.StatusBadRequest, route, "Todos los campos son requeridos")
			return
		}
		if !runeLenBetween(suggestion.Message, 1, contactMessageMax) {
			respondWithError(c, http.StatusBadRequest, route, "El mensaje es demasiado largo")
			return
		}
		if req.RUT != "" {
			cleaned, err := rut.Normalize(req.RUT)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "El RUT ingresado no es válido")
				return
			}
			suggestion.RUT = cleaned
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.Suggestions).InsertOne(ctx, suggestion)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		suggestion.ID, _ = res.InsertedID.(primitive.ObjectID)

		if adminEmail != "" {
			notice := mailer.ContactNotice{
				Name:    suggestion.Name,
				Email:   suggestion.Email,
				Message: suggestion.Message,
			}
			if suggestion.RUT != "" {
				notice.RUT = rut.Format(suggestion.RUT)
			}
			msg, err := mailer.ContactNoticeMessage(adminEmail, notice)
			if err == nil {
				sendCtx, sendCancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 10*time.Second)
				err = sender.Send(sendCtx, msg)
				sendCancel()
			}
			if err != nil {
				log.Error("contact notification failed", zap.String("suggestionId", suggestion.ID.Hex()), zap.Error(err))
			}
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":    "¡Mensaje enviado exitosamente! Te responderemos pronto.",
			"sugerencia": suggestion,
		})
	}
}

/* ===== Admin ===== */

func GetSuggestions(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/suggestions"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection(database.Suggestions).Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		suggestions := make([]models.Suggestion, 0)
		if err := cursor.All(ctx, &suggestions); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, suggestions)
	}
}

func markSuggestion(route string, db *mongo.Database, set bson.M) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var suggestion models.Suggestion
		err := db.Collection(database.Suggestions).FindOneAndUpdate(ctx,
			bson.M{"_id": id}, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&suggestion)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Sugerencia no encontrada")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, suggestion)
	}
}

func MarkSuggestionRead(db *mongo.Database) gin.HandlerFunc {
	return markSuggestion("PATCH /api/suggestions/:id/leido", db, bson.M{"read": true})
}

// MarkSuggestionResponded also marks the suggestion as read.
func MarkSuggestionResponded(db *mongo.Database) gin.HandlerFunc {
	return markSuggestion("PATCH /api/suggestions/:id/respondido", db, bson.M{"read": true, "responded": true})
}

func DeleteSuggestion(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/suggestions/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.Suggestions).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Sugerencia no encontrada")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Sugerencia eliminada"})
	}
}
