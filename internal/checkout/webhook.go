package checkout

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/logging"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/mailer"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/payments"
)

// HandlePaymentEvent applies a verified provider notification. Stock is never
// touched for an order that still holds its checkout reservation, and
// redelivered events for completed orders are no-ops. A completed session
// whose payment is still processing waits for the async outcome event.
func (s *Service) HandlePaymentEvent(ctx context.Context, evt payments.Event) error {
	switch evt.Type {
	case payments.EventSessionCompleted, payments.EventAsyncPaymentSucceeded:
		return s.completeOrder(ctx, evt)
	case payments.EventSessionExpired:
		return s.releaseForEvent(ctx, evt, ReasonSessionExpired)
	case payments.EventAsyncPaymentFailed:
		return s.releaseForEvent(ctx, evt, ReasonPaymentFailed)
	default:
		return nil
	}
}

func orderIDFromEvent(evt payments.Event) (primitive.ObjectID, error) {
	raw := strings.TrimSpace(evt.Metadata["orderId"])
	if raw == "" {
		return primitive.NilObjectID, ErrMissingOrderID
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, ErrOrderNotFound
	}
	return id, nil
}

func (s *Service) completeOrder(ctx context.Context, evt payments.Event) error {
	orderID, err := orderIDFromEvent(evt)
	if err != nil {
		return err
	}
	log := logging.FromContext(ctx, s.logger).Named("webhook").With(
		zap.String("orderId", orderID.Hex()),
		zap.String("eventId", evt.ID),
	)
	if evt.PaymentStatus != payments.PaymentStatusPaid {
		log.Info("session completed without captured payment", zap.String("paymentStatus", evt.PaymentStatus))
		return nil
	}

	var (
		order     models.Order
		completed bool
	)
	err = s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		completed = false
		current, err := s.store.GetOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		order = current

		switch current.Status {
		case models.OrderStatusCompleted, models.OrderStatusShipped:
			return nil
		case models.OrderStatusCancelled:
			if err := s.reReserve(txCtx, current); err != nil {
				return err
			}
		}

		ok, err := s.store.TransitionOrder(txCtx, orderID, Transition{
			From: []string{models.OrderStatusPending, models.OrderStatusCancelled},
			To:   models.OrderStatusCompleted,
			At:   s.clock(),
		})
		if err != nil {
			return err
		}
		completed = ok
		return nil
	})
	if errors.Is(err, ErrInsufficientStock) {
		log.Error("paid order was already released and stock is gone, needs manual follow up", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	if !completed {
		log.Info("payment event already applied")
		return nil
	}
	log.Info("order completed", zap.String("previousStatus", order.Status))

	if order.PaymentSessionID == "" && evt.SessionID != "" {
		if err := s.store.SetPaymentSession(ctx, orderID, evt.SessionID); err != nil {
			log.Warn("could not backfill payment session", zap.Error(err))
		}
	}

	s.sendConfirmation(ctx, log, order, evt.CustomerEmail)
	return nil
}

// reReserve takes stock again for an order the sweeper released before the
// payment arrived.
func (s *Service) reReserve(ctx context.Context, order models.Order) error {
	for _, item := range order.Items {
		ok, err := s.store.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return &StockError{ProductID: item.ProductID, Name: item.Name, Requested: item.Quantity}
		}
	}
	if order.CouponID != nil {
		if _, err := s.store.IncrementCouponUsage(ctx, *order.CouponID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) releaseForEvent(ctx context.Context, evt payments.Event, reason string) error {
	orderID, err := orderIDFromEvent(evt)
	if err != nil {
		return nil
	}
	_, err = s.ReleaseOrder(ctx, orderID, reason)
	if errors.Is(err, ErrOrderNotFound) {
		return nil
	}
	return err
}

func (s *Service) sendConfirmation(ctx context.Context, log *zap.Logger, order models.Order, fallback string) {
	email := order.GuestEmail
	if !order.IsGuest && order.UserID != nil {
		found, err := s.store.UserEmail(ctx, *order.UserID)
		if err != nil {
			log.Warn("could not resolve user email", zap.Error(err))
		}
		email = found
	}
	if email == "" {
		email = fallback
	}
	if email == "" {
		log.Warn("no email to send order confirmation to")
		return
	}

	lines := make([]mailer.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, mailer.OrderLine{Name: item.Name, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	msg, err := mailer.OrderConfirmationMessage(email, mailer.OrderConfirmation{
		OrderID:      order.ID.Hex(),
		Items:        lines,
		Subtotal:     order.Subtotal,
		Discount:     order.Discount,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		Address:      order.Shipping.Address,
		City:         order.Shipping.City,
		Region:       order.Shipping.Region,
		PostalCode:   order.Shipping.PostalCode,
	})
	if err != nil {
		log.Error("render confirmation email", zap.Error(err))
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error("send confirmation email", zap.Error(err))
	}
}
