package checkout

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/logging"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

// ReleaseOrder cancels a PENDING order and gives its stock and coupon use
// back. It returns false when the order was no longer PENDING.
func (s *Service) ReleaseOrder(ctx context.Context, orderID primitive.ObjectID, reason string) (bool, error) {
	released := false
	err := s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		released = false
		order, err := s.store.GetOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending {
			return nil
		}

		ok, err := s.store.TransitionOrder(txCtx, orderID, Transition{
			From:   []string{models.OrderStatusPending},
			To:     models.OrderStatusCancelled,
			At:     s.clock(),
			Reason: reason,
		})
		if err != nil || !ok {
			return err
		}

		for _, item := range order.Items {
			if err := s.store.IncrementStock(txCtx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if order.CouponID != nil {
			if err := s.store.DecrementCouponUsage(txCtx, *order.CouponID); err != nil {
				return err
			}
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if released {
		logging.FromContext(ctx, s.logger).Info("order released",
			zap.String("orderId", orderID.Hex()),
			zap.String("reason", reason),
		)
	}
	return released, nil
}
