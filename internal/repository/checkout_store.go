// Package repository holds the Mongo-backed stores used by the services.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/checkout"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

// CheckoutStore implements checkout.Store on top of a replica-set database.
// Methods called inside RunInTransaction receive the session context and so
// join the transaction.
type CheckoutStore struct {
	db *mongo.Database
}

var _ checkout.Store = (*CheckoutStore)(nil)

func NewCheckoutStore(db *mongo.Database) *CheckoutStore {
	return &CheckoutStore{db: db}
}

func (s *CheckoutStore) products() *mongo.Collection { return s.db.Collection(database.Products) }
func (s *CheckoutStore) orders() *mongo.Collection   { return s.db.Collection(database.Orders) }
func (s *CheckoutStore) coupons() *mongo.Collection  { return s.db.Collection(database.Coupons) }
func (s *CheckoutStore) users() *mongo.Collection    { return s.db.Collection(database.Users) }

func (s *CheckoutStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTransaction(ctx, s.db.Client(), func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

func (s *CheckoutStore) UserExistsWithRUT(ctx context.Context, rut string) (bool, error) {
	n, err := s.users().CountDocuments(ctx, bson.M{"rut": rut}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *CheckoutStore) UserEmail(ctx context.Context, id primitive.ObjectID) (string, error) {
	var user struct {
		Email string `bson:"email"`
	}
	err := s.users().FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"email": 1})).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	return user.Email, err
}

func (s *CheckoutStore) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var product models.Product
	err := s.products().FindOne(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, checkout.ErrProductNotFound
	}
	return product, err
}

// DecrementStock only matches while enough stock remains, so a concurrent
// buyer can never drive it negative. Non-positive quantities never match.
func (s *CheckoutStore) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	res, err := s.products().UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *CheckoutStore) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	if qty <= 0 {
		return checkout.ErrInvalidQuantity
	}
	_, err := s.products().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock": qty},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	return err
}

func (s *CheckoutStore) GetCoupon(ctx context.Context, id primitive.ObjectID) (models.Coupon, error) {
	var coupon models.Coupon
	err := s.coupons().FindOne(ctx, bson.M{"_id": id}).Decode(&coupon)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Coupon{}, coupons.ErrNotFound
	}
	return coupon, err
}

func (s *CheckoutStore) IncrementCouponUsage(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"maxUses": bson.M{"$exists": false}},
			bson.M{"maxUses": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$uses", "$maxUses"}}},
		},
	}
	res, err := s.coupons().UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"uses": 1}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *CheckoutStore) DecrementCouponUsage(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.coupons().UpdateOne(ctx,
		bson.M{"_id": id, "uses": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"uses": -1}},
	)
	return err
}

func (s *CheckoutStore) InsertOrder(ctx context.Context, order *models.Order) error {
	res, err := s.orders().InsertOne(ctx, order)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (s *CheckoutStore) GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	var order models.Order
	err := s.orders().FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, checkout.ErrOrderNotFound
	}
	return order, err
}

func (s *CheckoutStore) TransitionOrder(ctx context.Context, id primitive.ObjectID, t checkout.Transition) (bool, error) {
	set := bson.M{"status": t.To, "updatedAt": t.At}
	switch t.To {
	case models.OrderStatusCompleted:
		set["completedAt"] = t.At
	case models.OrderStatusShipped:
		set["shippedAt"] = t.At
	case models.OrderStatusCancelled:
		set["cancelledAt"] = t.At
		if t.Reason != "" {
			set["cancelReason"] = t.Reason
		}
	}
	res, err := s.orders().UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": t.From}},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *CheckoutStore) SetPaymentSession(ctx context.Context, id primitive.ObjectID, sessionID string) error {
	_, err := s.orders().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"paymentSessionId": sessionID, "updatedAt": time.Now().UTC()}},
	)
	return err
}

func (s *CheckoutStore) ListStalePending(ctx context.Context, before time.Time, limit int64) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(limit)
	cursor, err := s.orders().Find(ctx, bson.M{
		"status":    models.OrderStatusPending,
		"createdAt": bson.M{"$lt": before},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Order
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
