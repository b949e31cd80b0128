package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

const (
	reviewCommentMin = 10
	reviewCommentMax = 1000
)

var (
	errReviewRating  = errors.New("Rating debe ser entre 1 y 5")
	errReviewComment = errors.New("Comentario debe tener entre 10 y 1000 caracteres")
)

type reviewCreateRequest struct {
	ProductID  string `json:"productId" binding:"required"`
	Rating     int    `json:"rating" binding:"required"`
	Comentario string `json:"comentario" binding:"required"`
}

type reviewUpdateRequest struct {
	Rating     *int    `json:"rating"`
	Comentario *string `json:"comentario"`
}

func checkRating(rating int) error {
	if rating < 1 || rating > 5 {
		return errReviewRating
	}
	return nil
}

// cleanComment sanitizes first so markup never counts towards the length.
func cleanComment(raw string) (string, error) {
	comment := sanitizeText(raw)
	if !runeLenBetween(comment, reviewCommentMin, reviewCommentMax) {
		return "", errReviewComment
	}
	return comment, nil
}

func findReviews(ctx context.Context, db *mongo.Database, filter bson.M) ([]models.Review, error) {
	cursor, err := db.Collection(database.Reviews).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reviews := make([]models.Review, 0)
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ownReview loads a review and checks it belongs to the caller. It has
// already answered when ok is false.
func ownReview(ctx context.Context, c *gin.Context, db *mongo.Database, route string, forbidden string) (models.Review, bool) {
	userID, ok := currentUser(c, route)
	if !ok {
		return models.Review{}, false
	}
	id, ok := pathID(c, route, "id")
	if !ok {
		return models.Review{}, false
	}

	var review models.Review
	err := db.Collection(database.Reviews).FindOne(ctx, bson.M{"_id": id}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusNotFound, route, "Review no encontrada")
		return models.Review{}, false
	}
	if err != nil {
		respondInternal(c, route, err)
		return models.Review{}, false
	}
	if review.UserID != userID {
		respondWithError(c, http.StatusForbidden, route, forbidden)
		return models.Review{}, false
	}
	return review, true
}

func CreateReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/reviews"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req reviewCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := parseObjectID(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "ID de producto inválido")
			return
		}
		if err := checkRating(req.Rating); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		comment, err := cleanComment(req.Comentario)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		exists, err := productExists(ctx, db, productID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if !exists {
			respondWithError(c, http.StatusNotFound, route, "Producto no encontrado")
			return
		}

		var user models.User
		if err := db.Collection(database.Users).FindOne(ctx, bson.M{"_id": userID},
			options.FindOne().SetProjection(bson.M{"name": 1}),
		).Decode(&user); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			respondInternal(c, route, err)
			return
		}

		now := time.Now().UTC()
		review := models.Review{
			UserID:    userID,
			UserName:  user.Name,
			ProductID: productID,
			Rating:    req.Rating,
			Comment:   comment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		res, err := db.Collection(database.Reviews).InsertOne(ctx, review)
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "Ya has dejado una review para este producto")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		review.ID, _ = res.InsertedID.(primitive.ObjectID)

		c.JSON(http.StatusCreated, review)
	}
}

func GetProductReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/reviews/product/:productId"
		defer handlePanic(c, route)

		productID, ok := pathID(c, route, "productId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		reviews, err := approvedReviews(ctx, db, productID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reviews": reviews, "stats": summarizeReviews(reviews)})
	}
}

func GetMyReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/reviews/my-reviews"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		reviews, err := findReviews(ctx, db, bson.M{"userId": userID})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, reviews)
	}
}

// UpdateReview edits the caller's own review. Any edit sends it back to moderation.
func UpdateReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/reviews/:id"
		defer handlePanic(c, route)

		var req reviewUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{"approved": false, "updatedAt": time.Now().UTC()}
		if req.Rating != nil {
			if err := checkRating(*req.Rating); err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			set["rating"] = *req.Rating
		}
		if req.Comentario != nil {
			comment, err := cleanComment(*req.Comentario)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			set["comment"] = comment
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		review, ok := ownReview(ctx, c, db, route, "No tienes permiso para editar esta review")
		if !ok {
			return
		}

		var updated models.Review
		if err := db.Collection(database.Reviews).FindOneAndUpdate(ctx,
			bson.M{"_id": review.ID}, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/reviews/:id"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		review, ok := ownReview(ctx, c, db, route, "No tienes permiso para eliminar esta review")
		if !ok {
			return
		}
		if _, err := db.Collection(database.Reviews).DeleteOne(ctx, bson.M{"_id": review.ID}); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Review eliminada correctamente"})
	}
}

/* ===== Moderation ===== */

func GetPendingReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/reviews/admin/pending"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		reviews, err := findReviews(ctx, db, bson.M{"approved": false})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, reviews)
	}
}

type moderationStats struct {
	Total    int     `json:"total"`
	Approved int     `json:"aprobadas"`
	Pending  int     `json:"pendientes"`
	Average  float64 `json:"promedioGeneral"`
}

func summarizeModeration(reviews []models.Review) moderationStats {
	stats := moderationStats{Total: len(reviews)}
	sum := 0
	for _, r := range reviews {
		if r.Approved {
			stats.Approved++
		} else {
			stats.Pending++
		}
		sum += r.Rating
	}
	if stats.Total > 0 {
		stats.Average = math.Round(float64(sum)/float64(stats.Total)*10) / 10
	}
	return stats
}

func GetAllReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/reviews/admin/all"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		reviews, err := findReviews(ctx, db, bson.M{})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reviews": reviews, "stats": summarizeModeration(reviews)})
	}
}

func ApproveReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/reviews/admin/:id/approve"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var review models.Review
		err := db.Collection(database.Reviews).FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"approved": true, "updatedAt": time.Now().UTC()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&review)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Review no encontrada")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, review)
	}
}

// RejectReview deletes the review.
func RejectReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/reviews/admin/:id/reject"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.Reviews).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Review no encontrada")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Review rechazada y eliminada correctamente"})
	}
}
