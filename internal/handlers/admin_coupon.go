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

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

type couponCreateRequest struct {
	Codigo          string     `json:"codigo" binding:"required"`
	Descripcion     string     `json:"descripcion"`
	Tipo            string     `json:"tipo" binding:"required"`
	Valor           int64      `json:"valor" binding:"min=0"`
	MinCompra       int64      `json:"minCompra" binding:"min=0"`
	MaxUsos         *int       `json:"maxUsos"`
	FechaInicio     *time.Time `json:"fechaInicio"`
	FechaExpiracion *time.Time `json:"fechaExpiracion"`
	Activo          *bool      `json:"activo"`
}

// couponUpdateRequest is partial. maxUsos 0 removes the cap and a null
// date clears it.
type couponUpdateRequest struct {
	Descripcion     *string    `json:"descripcion"`
	Tipo            *string    `json:"tipo"`
	Valor           *int64     `json:"valor"`
	MinCompra       *int64     `json:"minCompra"`
	MaxUsos         *int       `json:"maxUsos"`
	FechaInicio     *time.Time `json:"fechaInicio"`
	FechaExpiracion *time.Time `json:"fechaExpiracion"`
	ClearInicio     bool       `json:"clearFechaInicio"`
	ClearExpiracion bool       `json:"clearFechaExpiracion"`
	Activo          *bool      `json:"activo"`
}

func (r couponCreateRequest) toCoupon(now time.Time) (models.Coupon, error) {
	c := models.Coupon{
		Code:        coupons.Normalize(r.Codigo),
		Description: strings.TrimSpace(r.Descripcion),
		Type:        strings.ToUpper(strings.TrimSpace(r.Tipo)),
		Value:       r.Valor,
		MinPurchase: r.MinCompra,
		MaxUses:     r.MaxUsos,
		StartsAt:    r.FechaInicio,
		ExpiresAt:   r.FechaExpiracion,
		Active:      r.Activo == nil || *r.Activo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return c, coupons.ValidateDefinition(definitionOf(c))
}

func definitionOf(c models.Coupon) coupons.Definition {
	return coupons.Definition{
		Code:        c.Code,
		Type:        c.Type,
		Value:       c.Value,
		MinPurchase: c.MinPurchase,
		MaxUses:     c.MaxUses,
		StartsAt:    c.StartsAt,
		ExpiresAt:   c.ExpiresAt,
	}
}

// apply merges the update onto c and validates the merged definition.
func (r couponUpdateRequest) apply(c models.Coupon, now time.Time) (models.Coupon, error) {
	if r.Descripcion != nil {
		c.Description = strings.TrimSpace(*r.Descripcion)
	}
	if r.Tipo != nil {
		c.Type = strings.ToUpper(strings.TrimSpace(*r.Tipo))
	}
	if r.Valor != nil {
		c.Value = *r.Valor
	}
	if r.MinCompra != nil {
		c.MinPurchase = *r.MinCompra
	}
	if r.MaxUsos != nil {
		if *r.MaxUsos == 0 {
			c.MaxUses = nil
		} else {
			v := *r.MaxUsos
			c.MaxUses = &v
		}
	}
	if r.ClearInicio {
		c.StartsAt = nil
	} else if r.FechaInicio != nil {
		c.StartsAt = r.FechaInicio
	}
	if r.ClearExpiracion {
		c.ExpiresAt = nil
	} else if r.FechaExpiracion != nil {
		c.ExpiresAt = r.FechaExpiracion
	}
	if r.Activo != nil {
		c.Active = *r.Activo
	}
	c.UpdatedAt = now
	return c, coupons.ValidateDefinition(definitionOf(c))
}

func couponOrderCounts(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	cursor, err := db.Collection(database.Orders).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"couponId": bson.M{"$in": ids}}}},
		{{Key: "$group", Value: bson.M{"_id": "$couponId", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]int64, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Count
	}
	return out, nil
}

func GetCoupons(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/coupons"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection(database.Coupons).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		list := make([]models.Coupon, 0)
		if err := cursor.All(ctx, &list); err != nil {
			respondInternal(c, route, err)
			return
		}

		ids := make([]primitive.ObjectID, 0, len(list))
		for _, cp := range list {
			ids = append(ids, cp.ID)
		}
		counts, err := couponOrderCounts(ctx, db, ids)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		type couponWithCount struct {
			models.Coupon
			OrderCount int64 `json:"orderCount"`
		}
		out := make([]couponWithCount, 0, len(list))
		for _, cp := range list {
			out = append(out, couponWithCount{Coupon: cp, OrderCount: counts[cp.ID]})
		}
		c.JSON(http.StatusOK, gin.H{"coupons": out})
	}
}

func CreateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/coupons"
		defer handlePanic(c, route)

		var req couponCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		coupon, err := req.toCoupon(time.Now().UTC())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, couponMessage(err))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection(database.Coupons).InsertOne(ctx, coupon)
		if mongo.IsDuplicateKeyError(err) {
			respondWithError(c, http.StatusConflict, route, "Ya existe un cupón con ese código")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		coupon.ID, _ = res.InsertedID.(primitive.ObjectID)

		requestLogger(c, "coupon").Info("coupon created", zap.String("code", coupon.Code))
		c.JSON(http.StatusCreated, coupon)
	}
}

func UpdateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/coupons/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}
		var req couponUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		col := db.Collection(database.Coupons)

		var existing models.Coupon
		err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Cupón no encontrado")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		updated, err := req.apply(existing, time.Now().UTC())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, couponMessage(err))
			return
		}

		// uses is owned by checkout and must not be overwritten here
		set := bson.M{
			"description": updated.Description,
			"type":        updated.Type,
			"value":       updated.Value,
			"minPurchase": updated.MinPurchase,
			"active":      updated.Active,
			"updatedAt":   updated.UpdatedAt,
		}
		unset := bson.M{}
		if updated.MaxUses != nil {
			set["maxUses"] = *updated.MaxUses
		} else {
			unset["maxUses"] = ""
		}
		if updated.StartsAt != nil {
			set["startsAt"] = *updated.StartsAt
		} else {
			unset["startsAt"] = ""
		}
		if updated.ExpiresAt != nil {
			set["expiresAt"] = *updated.ExpiresAt
		} else {
			unset["expiresAt"] = ""
		}
		update := bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}

		if err := col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteCoupon deactivates instead of deleting when orders reference the coupon.
func DeleteCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/coupons/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		col := db.Collection(database.Coupons)

		orders, err := db.Collection(database.Orders).CountDocuments(ctx, bson.M{"couponId": id})
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if orders > 0 {
			var coupon models.Coupon
			err := col.FindOneAndUpdate(ctx, bson.M{"_id": id},
				bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).Decode(&coupon)
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "Cupón no encontrado")
				return
			}
			if err != nil {
				respondInternal(c, route, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"message": "El cupón tiene órdenes asociadas, se ha desactivado en su lugar",
				"coupon":  coupon,
			})
			return
		}

		res, err := col.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Cupón no encontrado")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cupón eliminado exitosamente"})
	}
}

func GetCouponStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/coupons/:id/stats"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var coupon models.Coupon
		err := db.Collection(database.Coupons).FindOne(ctx, bson.M{"_id": id}).Decode(&coupon)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Cupón no encontrado")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		cursor, err := db.Collection(database.Orders).Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"couponId": id, "status": bson.M{"$ne": models.OrderStatusCancelled}}}},
			{{Key: "$group", Value: bson.M{
				"_id":        nil,
				"discounts":  bson.M{"$sum": "$discount"},
				"sales":      bson.M{"$sum": "$total"},
				"lastUsedAt": bson.M{"$max": "$createdAt"},
			}}},
		})
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		defer cursor.Close(ctx)

		var rows []struct {
			Discounts  int64      `bson:"discounts"`
			Sales      int64      `bson:"sales"`
			LastUsedAt *time.Time `bson:"lastUsedAt"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			respondInternal(c, route, err)
			return
		}

		stats := gin.H{
			"codigo":          coupon.Code,
			"usosActuales":    coupon.Uses,
			"maxUsos":         coupon.MaxUses,
			"totalDescuentos": int64(0),
			"totalVentas":     int64(0),
			"ultimoUso":       nil,
		}
		if len(rows) > 0 {
			stats["totalDescuentos"] = rows[0].Discounts
			stats["totalVentas"] = rows[0].Sales
			stats["ultimoUso"] = rows[0].LastUsedAt
		}
		c.JSON(http.StatusOK, stats)
	}
}
