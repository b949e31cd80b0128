package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

const lowStockThreshold = 5

type topProduct struct {
	ID       string `bson:"_id" json:"id"`
	Name     string `bson:"name" json:"nombre"`
	Quantity int64  `bson:"quantity" json:"cantidad"`
	Revenue  int64  `bson:"revenue" json:"ingresos"`
}

type dailySales struct {
	Day   string `bson:"_id"`
	Total int64  `bson:"total"`
}

type inventoryTotal struct {
	Value int64 `bson:"value"`
}

type salesSummary struct {
	Sales    int64 `bson:"sales"`
	Count    int64 `bson:"count"`
	Shipping int64 `bson:"shipping"`
}

// paidStatuses are the orders whose money was collected.
var paidStatuses = bson.M{"$in": []string{models.OrderStatusCompleted, models.OrderStatusShipped}}

func aggregateAll[T any](ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetReports builds the admin dashboard. Independent queries run concurrently.
func GetReports(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/reports"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		orders := db.Collection(database.Orders)
		products := db.Collection(database.Products)
		since := time.Now().UTC().AddDate(0, 0, -30)
		notDeleted := bson.M{"isDeleted": bson.M{"$ne": true}}

		var (
			summary   salesSummary
			top       []topProduct
			lowStock  []models.Product
			daily     []dailySales
			inventory []inventoryTotal

			pending, shipped, guests, registered, productCount, userCount int64
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rows, err := aggregateAll[salesSummary](gctx, orders, mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"status": paidStatuses}}},
				{{Key: "$group", Value: bson.M{
					"_id":      nil,
					"sales":    bson.M{"$sum": "$total"},
					"count":    bson.M{"$sum": 1},
					"shipping": bson.M{"$sum": "$shippingCost"},
				}}},
			})
			if err == nil && len(rows) > 0 {
				summary = rows[0]
			}
			return err
		})
		g.Go(func() error {
			var err error
			top, err = aggregateAll[topProduct](gctx, orders, mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"status": paidStatuses}}},
				{{Key: "$unwind", Value: "$items"}},
				{{Key: "$group", Value: bson.M{
					"_id":      bson.M{"$toString": "$items.productId"},
					"name":     bson.M{"$last": "$items.name"},
					"quantity": bson.M{"$sum": "$items.quantity"},
					"revenue":  bson.M{"$sum": bson.M{"$multiply": bson.A{"$items.unitPrice", "$items.quantity"}}},
				}}},
				{{Key: "$sort", Value: bson.D{{Key: "quantity", Value: -1}}}},
				{{Key: "$limit", Value: 10}},
			})
			return err
		})
		g.Go(func() error {
			cursor, err := products.Find(gctx,
				bson.M{"isDeleted": bson.M{"$ne": true}, "stock": bson.M{"$lt": lowStockThreshold}},
				options.Find().SetSort(bson.D{{Key: "stock", Value: 1}}),
			)
			if err != nil {
				return err
			}
			defer cursor.Close(gctx)
			lowStock = make([]models.Product, 0)
			return cursor.All(gctx, &lowStock)
		})
		g.Go(func() error {
			var err error
			daily, err = aggregateAll[dailySales](gctx, orders, mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"status": paidStatuses, "createdAt": bson.M{"$gte": since}}}},
				{{Key: "$group", Value: bson.M{
					"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}},
					"total": bson.M{"$sum": "$total"},
				}}},
				{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
			})
			return err
		})
		g.Go(func() error {
			var err error
			inventory, err = aggregateAll[inventoryTotal](gctx, products, mongo.Pipeline{
				{{Key: "$match", Value: notDeleted}},
				{{Key: "$group", Value: bson.M{
					"_id":   nil,
					"value": bson.M{"$sum": bson.M{"$multiply": bson.A{"$price", "$stock"}}},
				}}},
			})
			return err
		})
		counts := []struct {
			col    *mongo.Collection
			filter bson.M
			dst    *int64
		}{
			{orders, bson.M{"status": models.OrderStatusPending}, &pending},
			{orders, bson.M{"status": models.OrderStatusShipped}, &shipped},
			{orders, bson.M{"isGuest": true}, &guests},
			{orders, bson.M{"isGuest": false}, &registered},
			{products, notDeleted, &productCount},
			{db.Collection(database.Users), bson.M{}, &userCount},
		}
		for _, q := range counts {
			q := q
			g.Go(func() error {
				n, err := q.col.CountDocuments(gctx, q.filter)
				*q.dst = n
				return err
			})
		}

		if err := g.Wait(); err != nil {
			respondInternal(c, route, err)
			return
		}

		perDay := make(map[string]int64, len(daily))
		for _, d := range daily {
			perDay[d.Day] = d.Total
		}
		var inventoryValue int64
		if len(inventory) > 0 {
			inventoryValue = inventory[0].Value
		}

		c.JSON(http.StatusOK, gin.H{
			"resumen": gin.H{
				"ventasTotales":     summary.Sales,
				"numeroVentas":      summary.Count,
				"ordenesPendientes": pending,
				"ordenesEnviadas":   shipped,
				"totalProductos":    productCount,
				"totalUsuarios":     userCount,
				"valorInventario":   inventoryValue,
				"costoEnvioTotal":   summary.Shipping,
			},
			"productosMasVendidos": top,
			"productosBajoStock":   lowStock,
			"ventasPorDia":         perDay,
			"tipoClientes": gin.H{
				"invitados":   guests,
				"registrados": registered,
			},
		})
	}
}
