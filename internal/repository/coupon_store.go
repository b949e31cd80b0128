package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

type CouponStore struct {
	db *mongo.Database
}

var _ coupons.Finder = (*CouponStore)(nil)

func NewCouponStore(db *mongo.Database) *CouponStore {
	return &CouponStore{db: db}
}

func (s *CouponStore) FindByCode(ctx context.Context, code string) (models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.Collection(database.Coupons).FindOne(ctx, bson.M{"code": coupons.Normalize(code)}).Decode(&coupon)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Coupon{}, coupons.ErrNotFound
	}
	return coupon, err
}
