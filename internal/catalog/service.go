package catalog

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/pricing"
)

var ErrNotFound = errors.New("product not found")

type Pagination struct {
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

func NewPagination(page, limit, total int64) Pagination {
	totalPages := int64(0)
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    (page-1)*limit+limit < total,
	}
}

type Page struct {
	Products   []models.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

type Service struct {
	products *mongo.Collection
}

func NewService(db *mongo.Database) *Service {
	return &Service{products: db.Collection(database.Products)}
}

// Decorate fills the computed price and availability fields.
func Decorate(p *models.Product) {
	p.FinalPrice = pricing.EffectivePrice(p.Price, p.Discount)
	p.InStock = p.Stock > 0
	if p.Images == nil {
		p.Images = models.StringList{}
	}
}

func (s *Service) List(ctx context.Context, q Query) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := q.Filter()
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(q.Skip()).
		SetLimit(q.Limit)

	var (
		total    int64
		products []models.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.products.CountDocuments(gctx, filter)
		total = n
		return err
	})
	g.Go(func() error {
		cursor, err := s.products.Find(gctx, filter, findOptions)
		if err != nil {
			return err
		}
		defer cursor.Close(gctx)
		products = make([]models.Product, 0, q.Limit)
		return cursor.All(gctx, &products)
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	for i := range products {
		Decorate(&products[i])
	}
	return Page{Products: products, Pagination: NewPagination(q.Page, q.Limit, total)}, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p models.Product
	err := s.products.FindOne(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, err
	}
	Decorate(&p)
	return p, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	raw, err := s.products.Distinct(ctx, "category", bson.M{"isDeleted": bson.M{"$ne": true}})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if name, ok := v.(string); ok && name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}
