package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by repositories and handlers.
const (
	Products      = "products"
	Users         = "users"
	Orders        = "orders"
	Coupons       = "coupons"
	Reviews       = "reviews"
	Suggestions   = "suggestions"
	Subscribers   = "newsletter"
	RefreshTokens = "refresh_tokens"
)

func ensure(db *mongo.Database, collection string, models ...mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("%s indexes: %w", collection, err)
	}
	return nil
}

func EnsureProductIndexes(db *mongo.Database) error {
	return ensure(db, Products,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "isDeleted", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("listing"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("category_index"),
		},
	)
}

func EnsureUserIndexes(db *mongo.Database) error {
	return ensure(db, Users,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "rut", Value: 1}},
			Options: options.Index().
				SetName("rut_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"rut": bson.M{"$exists": true}}),
		},
	)
}

func EnsureOrderIndexes(db *mongo.Database) error {
	return ensure(db, Orders,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_index"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("status_age"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "paymentSessionId", Value: 1}},
			Options: options.Index().SetName("payment_session").SetSparse(true),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "couponId", Value: 1}},
			Options: options.Index().SetName("coupon_index").SetSparse(true),
		},
	)
}

func EnsureCouponIndexes(db *mongo.Database) error {
	return ensure(db, Coupons, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetName("code_unique").SetUnique(true),
	})
}

func EnsureReviewIndexes(db *mongo.Database) error {
	return ensure(db, Reviews,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().SetName("user_product_unique").SetUnique(true),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "approved", Value: 1}},
			Options: options.Index().SetName("product_approved"),
		},
	)
}

func EnsureSubscriberIndexes(db *mongo.Database) error {
	return ensure(db, Subscribers, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	})
}

func EnsureRefreshTokenIndexes(db *mongo.Database) error {
	return ensure(db, RefreshTokens,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetName("token_hash_unique").SetUnique(true),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expires_ttl").SetExpireAfterSeconds(0),
		},
	)
}

// EnsureIndexes runs every bootstrap and returns the failures without stopping early.
func EnsureIndexes(db *mongo.Database) []error {
	var errs []error
	for _, fn := range []func(*mongo.Database) error{
		EnsureProductIndexes,
		EnsureUserIndexes,
		EnsureOrderIndexes,
		EnsureCouponIndexes,
		EnsureReviewIndexes,
		EnsureSubscriberIndexes,
		EnsureRefreshTokenIndexes,
	} {
		if err := fn(db); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
