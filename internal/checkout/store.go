package checkout

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

// Transition moves an order from one of From to To. The store stamps the
// timestamp matching To.
type Transition struct {
	From   []string
	To     string
	At     time.Time
	Reason string
}

// Store is the persistence the order flow needs. Methods called with the
// context handed to RunInTransaction's callback take part in that transaction.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	UserExistsWithRUT(ctx context.Context, rut string) (bool, error)
	UserEmail(ctx context.Context, userID primitive.ObjectID) (string, error)

	GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	// DecrementStock subtracts qty only while stock >= qty; false means not enough stock.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error

	GetCoupon(ctx context.Context, id primitive.ObjectID) (models.Coupon, error)
	// IncrementCouponUsage adds one use unless the cap is already reached.
	IncrementCouponUsage(ctx context.Context, id primitive.ObjectID) (bool, error)
	DecrementCouponUsage(ctx context.Context, id primitive.ObjectID) error

	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	TransitionOrder(ctx context.Context, id primitive.ObjectID, t Transition) (bool, error)
	SetPaymentSession(ctx context.Context, id primitive.ObjectID, sessionID string) error
	ListStalePending(ctx context.Context, before time.Time, limit int64) ([]models.Order, error)
}
