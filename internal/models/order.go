package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusCancelled = "CANCELLED"
)

// OrderItem is a snapshot of a product line at checkout time.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	UnitPrice int64              `bson:"unitPrice" json:"unitPrice"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

type ShippingAddress struct {
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	Region     string `bson:"region" json:"region"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
}

// Order defines the persisted order document. Guest contact fields and UserID
// are mutually exclusive, selected by IsGuest.
type Order struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID           *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	IsGuest          bool                `bson:"isGuest" json:"isGuest"`
	GuestName        string              `bson:"guestName,omitempty" json:"guestName,omitempty"`
	GuestEmail       string              `bson:"guestEmail,omitempty" json:"guestEmail,omitempty"`
	GuestRUT         string              `bson:"guestRut,omitempty" json:"guestRut,omitempty"`
	Shipping         ShippingAddress     `bson:"shipping" json:"shipping"`
	Items            []OrderItem         `bson:"items" json:"items"`
	Subtotal         int64               `bson:"subtotal" json:"subtotal"`
	ShippingCost     int64               `bson:"shippingCost" json:"shippingCost"`
	Discount         int64               `bson:"discount" json:"discount"`
	Total            int64               `bson:"total" json:"total"`
	CouponID         *primitive.ObjectID `bson:"couponId,omitempty" json:"couponId,omitempty"`
	CouponCode       string              `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	Status           string              `bson:"status" json:"status"`
	PaymentSessionID string              `bson:"paymentSessionId,omitempty" json:"paymentSessionId,omitempty"`
	CancelReason     string              `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
	CompletedAt      *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ShippedAt        *time.Time          `bson:"shippedAt,omitempty" json:"shippedAt,omitempty"`
	CancelledAt      *time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
}
