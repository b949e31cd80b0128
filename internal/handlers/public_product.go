package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/catalog"
)

/*
GET /api/products
q, categoria, minPrecio, maxPrecio, page, limit
*/
func GetProducts(svc *catalog.Service) gin.HandlerFunc {
	return listProducts(svc)
}

type productLister interface {
	List(ctx context.Context, q catalog.Query) (catalog.Page, error)
}

func listProducts(svc productLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products"
		defer handlePanic(c, route)

		q, err := catalog.ParseQuery(c.Request.URL.Query())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "Parámetros de búsqueda inválidos")
			return
		}

		page, err := svc.List(c.Request.Context(), q)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// GetProduct returns the product with its approved reviews and rating summary.
func GetProduct(svc *catalog.Service, db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id"
		defer handlePanic(c, route)

		id, ok := pathID(c, route, "id")
		if !ok {
			return
		}

		product, err := svc.Get(c.Request.Context(), id)
		if errors.Is(err, catalog.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "Producto no encontrado")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		reviews, err := approvedReviews(ctx, db, id)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		stats := summarizeReviews(reviews)

		c.JSON(http.StatusOK, gin.H{
			"product":     product,
			"reviews":     reviews,
			"avgRating":   stats.Average,
			"reviewCount": stats.Total,
		})
	}
}

func GetCategories(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/categories"
		defer handlePanic(c, route)

		categories, err := svc.Categories(c.Request.Context())
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}
