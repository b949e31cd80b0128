package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/catalog"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

type addressRequest struct {
	Label      string `json:"label"`
	Address    string `json:"direccion" binding:"required"`
	City       string `json:"ciudad" binding:"required"`
	Region     string `json:"region" binding:"required"`
	PostalCode string `json:"codigoPostal"`
	IsDefault  bool   `json:"isDefault"`
}

type favoriteRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

func (r addressRequest) toAddress(id string) models.Address {
	return models.Address{
		ID:         id,
		Label:      strings.TrimSpace(r.Label),
		Address:    strings.TrimSpace(r.Address),
		City:       strings.TrimSpace(r.City),
		Region:     strings.TrimSpace(r.Region),
		PostalCode: strings.TrimSpace(r.PostalCode),
		IsDefault:  r.IsDefault,
	}
}

// upsertAddress replaces the address with the same id or appends it. At most
// one address stays default, and a lone address always is.
func upsertAddress(addresses []models.Address, addr models.Address) ([]models.Address, bool) {
	out := make([]models.Address, 0, len(addresses)+1)
	found := false
	for _, existing := range addresses {
		if existing.ID == addr.ID {
			existing = addr
			found = true
		} else if addr.IsDefault {
			existing.IsDefault = false
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, addr)
	}
	if len(out) == 1 {
		out[0].IsDefault = true
	}
	return out, found
}

func removeAddress(addresses []models.Address, id string) ([]models.Address, bool) {
	out := make([]models.Address, 0, len(addresses))
	found, wasDefault := false, false
	for _, addr := range addresses {
		if addr.ID == id {
			found, wasDefault = true, addr.IsDefault
			continue
		}
		out = append(out, addr)
	}
	if wasDefault && len(out) > 0 {
		out[0].IsDefault = true
	}
	return out, found
}

func loadUser(ctx context.Context, c *gin.Context, db *mongo.Database, route string, userID primitive.ObjectID) (models.User, bool) {
	var user models.User
	err := db.Collection(database.Users).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusNotFound, route, "Usuario no encontrado")
		return models.User{}, false
	}
	if err != nil {
		respondInternal(c, route, err)
		return models.User{}, false
	}
	return user, true
}

func saveAddresses(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, addresses []models.Address) error {
	_, err := db.Collection(database.Users).UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"addresses": addresses, "updatedAt": time.Now().UTC()},
	})
	return err
}

func GetUserAddresses(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/user/addresses"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, ok := loadUser(ctx, c, db, route, userID)
		if !ok {
			return
		}
		if user.Addresses == nil {
			user.Addresses = []models.Address{}
		}
		c.JSON(http.StatusOK, gin.H{"addresses": user.Addresses})
	}
}

func CreateUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/user/addresses"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, ok := loadUser(ctx, c, db, route, userID)
		if !ok {
			return
		}
		address := req.toAddress(uuid.NewString())
		addresses, _ := upsertAddress(user.Addresses, address)
		if err := saveAddresses(ctx, db, userID, addresses); err != nil {
			respondInternal(c, route, err)
			return
		}

		requestLogger(c, "address").Info("address created", zap.String("addressId", address.ID))
		c.JSON(http.StatusCreated, gin.H{"address": addresses[len(addresses)-1], "addresses": addresses})
	}
}

func UpdateUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/user/addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		addressID := strings.TrimSpace(c.Param("id"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, ok := loadUser(ctx, c, db, route, userID)
		if !ok {
			return
		}
		exists := false
		for _, addr := range user.Addresses {
			exists = exists || addr.ID == addressID
		}
		if !exists {
			respondWithError(c, http.StatusNotFound, route, "Dirección no encontrada")
			return
		}

		addresses, _ := upsertAddress(user.Addresses, req.toAddress(addressID))
		if err := saveAddresses(ctx, db, userID, addresses); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"addresses": addresses})
	}
}

func DeleteUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/user/addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, ok := loadUser(ctx, c, db, route, userID)
		if !ok {
			return
		}
		addresses, found := removeAddress(user.Addresses, strings.TrimSpace(c.Param("id")))
		if !found {
			respondWithError(c, http.StatusNotFound, route, "Dirección no encontrada")
			return
		}
		if err := saveAddresses(ctx, db, userID, addresses); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Dirección eliminada", "addresses": addresses})
	}
}

func GetUserFavorites(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/user/favorites"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, ok := loadUser(ctx, c, db, route, userID)
		if !ok {
			return
		}
		if len(user.Favorites) == 0 {
			c.JSON(http.StatusOK, gin.H{"favorites": []models.Product{}})
			return
		}

		cursor, err := db.Collection(database.Products).Find(ctx, bson.M{
			"_id":       bson.M{"$in": user.Favorites},
			"isDeleted": bson.M{"$ne": true},
		})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		products := make([]models.Product, 0, len(user.Favorites))
		if err := cursor.All(ctx, &products); err != nil {
			respondInternal(c, route, err)
			return
		}

		productByID := make(map[primitive.ObjectID]models.Product, len(products))
		for _, product := range products {
			catalog.Decorate(&product)
			productByID[product.ID] = product
		}
		ordered := make([]models.Product, 0, len(products))
		for _, favoriteID := range user.Favorites {
			if product, exists := productByID[favoriteID]; exists {
				ordered = append(ordered, product)
			}
		}

		c.JSON(http.StatusOK, gin.H{"favorites": ordered})
	}
}

func productExists(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (bool, error) {
	err := db.Collection(database.Products).FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func AddUserFavorite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/user/favorites"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		var req favoriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := parseObjectID(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "ID de producto inválido")
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

		_, err = db.Collection(database.Users).UpdateByID(ctx, userID, bson.M{
			"$addToSet": bson.M{"favorites": productID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Producto agregado a favoritos"})
	}
}

func DeleteUserFavorite(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/user/favorites/:productId"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		productID, ok := pathID(c, route, "productId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		_, err := db.Collection(database.Users).UpdateByID(ctx, userID, bson.M{
			"$pull": bson.M{"favorites": productID},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Producto eliminado de favoritos"})
	}
}
