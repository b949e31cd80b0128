package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/catalog"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/pricing"
)

/* =======================
   REQUEST MODELS
======================= */

type ProductCreateRequest struct {
	Name        string   `json:"nombre" binding:"required"`
	Description string   `json:"descripcion"`
	Price       int64    `json:"precio" binding:"required,gt=0"`
	Discount    int      `json:"descuento" binding:"min=0,max=100"`
	Stock       int      `json:"stock" binding:"min=0"`
	Images      []string `json:"imagenes"`
	Category    string   `json:"categoria" binding:"required"`
}

type ProductUpdateRequest struct {
	Name        *string   `json:"nombre"`
	Description *string   `json:"descripcion"`
	Price       *int64    `json:"precio"`
	Discount    *int      `json:"descuento"`
	Stock       *int      `json:"stock"`
	Images      *[]string `json:"imagenes"`
	Category    *string   `json:"categoria"`
}

var (
	errProductName     = errors.New("El nombre no puede estar vacío")
	errProductCategory = errors.New("La categoría no puede estar vacía")
	errProductStock    = errors.New("El stock no puede ser negativo")
	errProductPrice    = errors.New("El precio debe ser mayor a 0")
	errProductDiscount = errors.New("El descuento debe estar entre 0 y 100")
)

func cleanImages(values []string) models.StringList {
	out := make(models.StringList, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func priceError(err error) error {
	if errors.Is(err, pricing.ErrInvalidDiscount) {
		return errProductDiscount
	}
	return errProductPrice
}

// productUpdateSet turns a partial update into a $set document, validating
// the merged price and discount against the stored product.
func productUpdateSet(existing models.Product, req ProductUpdateRequest, now time.Time) (bson.M, error) {
	set := bson.M{"updatedAt": now}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errProductName
		}
		set["name"] = name
	}
	if req.Description != nil {
		set["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return nil, errProductCategory
		}
		set["category"] = category
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, errProductStock
		}
		set["stock"] = *req.Stock
	}
	if req.Images != nil {
		set["images"] = cleanImages(*req.Images)
	}

	if req.Price != nil || req.Discount != nil {
		price, discount, err := pricing.Resolve(existing.Price, existing.Discount, pricing.Update{Price: req.Price, Discount: req.Discount})
		if err != nil {
			return nil, priceError(err)
		}
		set["price"] = price
		set["discount"] = discount
	}
	return set, nil
}

/* =======================
   GET (ADMIN) – LIST
======================= */

func GetAllProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/products"
		defer handlePanic(c, route)

		page, limit, ok := parsePaginationParams(c, route)
		if !ok {
			return
		}

		filter := bson.M{"isDeleted": bson.M{"$ne": true}}
		if c.Query("includeDeleted") == "true" {
			filter = bson.M{}
		}
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		products := db.Collection(database.Products)

		total, err := products.CountDocuments(ctx, filter)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		cursor, err := products.Find(ctx, filter, options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page-1)*limit).
			SetLimit(limit))
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		items := make([]models.Product, 0, limit)
		if err := cursor.All(ctx, &items); err != nil {
			respondInternal(c, route, err)
			return
		}
		for i := range items {
			catalog.Decorate(&items[i])
		}

		c.JSON(http.StatusOK, gin.H{
			"products":   items,
			"pagination": catalog.NewPagination(page, limit, total),
		})
	}
}

/* =======================
   CREATE
======================= */

func CreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/products"
		defer handlePanic(c, route)

		var req ProductCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		category := strings.TrimSpace(req.Category)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, errProductName.Error())
			return
		}
		if category == "" {
			respondWithError(c, http.StatusBadRequest, route, errProductCategory.Error())
			return
		}
		if err := pricing.ValidatePrice(req.Price); err != nil {
			respondWithError(c, http.StatusBadRequest, route, errProductPrice.Error())
			return
		}
		if err := pricing.ValidateDiscount(req.Discount); err != nil {
			respondWithError(c, http.StatusBadRequest, route, errProductDiscount.Error())
			return
		}

		now := time.Now().UTC()
		product := models.Product{
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			Price:       req.Price,
			Discount:    req.Discount,
			Stock:       req.Stock,
			Images:      cleanImages(req.Images),
			Category:    category,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.Products).InsertOne(ctx, product)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		product.ID, _ = res.InsertedID.(primitive.ObjectID)
		catalog.Decorate(&product)

		requestLogger(c, "product").Info("product created", zap.String("productId", product.ID.Hex()))

		c.JSON(http.StatusCreated, gin.H{"message": "Producto creado", "product": product})
	}
}

/* =======================
   UPDATE
======================= */

func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/products/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}
		var req ProductUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		products := db.Collection(database.Products)

		var existing models.Product
		err := products.FindOne(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}}).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Producto no encontrado")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		set, err := productUpdateSet(existing, req, time.Now().UTC())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		var updated models.Product
		err = products.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Producto no encontrado")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		catalog.Decorate(&updated)

		c.JSON(http.StatusOK, gin.H{"message": "Producto actualizado", "product": updated})
	}
}

/* =======================
   DELETE (SOFT)
======================= */

// DeleteProduct only flags the product; past orders keep referencing it.
func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/products/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now().UTC()
		res, err := db.Collection(database.Products).UpdateOne(ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
		)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Producto no encontrado")
			return
		}

		requestLogger(c, "product").Info("product deleted", zap.String("productId", id.Hex()))
		c.JSON(http.StatusOK, gin.H{"message": "Producto eliminado"})
	}
}
