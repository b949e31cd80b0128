package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CouponTypePercentage = "PERCENTAGE"
	CouponTypeFixed      = "FIXED"
)

// Coupon codes are stored upper-cased. MaxUses nil means uncapped.
type Coupon struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code        string             `bson:"code" json:"code"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Type        string             `bson:"type" json:"type"`
	Value       int64              `bson:"value" json:"value"`
	MinPurchase int64              `bson:"minPurchase" json:"minPurchase"`
	MaxUses     *int               `bson:"maxUses,omitempty" json:"maxUses,omitempty"`
	Uses        int                `bson:"uses" json:"uses"`
	StartsAt    *time.Time         `bson:"startsAt,omitempty" json:"startsAt,omitempty"`
	ExpiresAt   *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	Active      bool               `bson:"active" json:"active"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
