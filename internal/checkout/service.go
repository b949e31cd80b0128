// Package checkout places orders, reconciles payment notifications and
// releases reservations of orders that were never paid.
package checkout

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/logging"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/mailer"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/payments"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/pricing"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/rut"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/shipping"
)

const (
	ReasonPaymentFailed  = "payment_session_failed"
	ReasonSessionExpired = "payment_session_expired"
	ReasonAbandoned      = "abandoned"
)

type Deps struct {
	Store       Store
	Payments    payments.Provider
	Mailer      mailer.Sender
	Logger      *zap.Logger
	Clock       func() time.Time
	FrontendURL string
	Currency    string
}

type Service struct {
	store       Store
	payments    payments.Provider
	mailer      mailer.Sender
	logger      *zap.Logger
	clock       func() time.Time
	frontendURL string
	currency    string
}

func NewService(d Deps) *Service {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	currency := strings.ToLower(strings.TrimSpace(d.Currency))
	if currency == "" {
		currency = "clp"
	}
	sender := d.Mailer
	if sender == nil {
		sender = mailer.NewLogMailer(d.Logger)
	}
	return &Service{
		store:       d.Store,
		payments:    d.Payments,
		mailer:      sender,
		logger:      logging.OrNop(d.Logger).Named("order"),
		clock:       clock,
		frontendURL: strings.TrimRight(d.FrontendURL, "/"),
		currency:    currency,
	}
}

type Item struct {
	ProductID primitive.ObjectID
	Quantity  int
}

type Guest struct {
	Name  string
	Email string
	RUT   string
}

// Request is one checkout attempt. UserID set means a registered buyer and
// Guest is ignored. A nil ShippingCost is derived from the shipping rule table.
type Request struct {
	UserID       *primitive.ObjectID
	Guest        Guest
	Items        []Item
	Shipping     models.ShippingAddress
	ShippingCost *int64
	CouponID     *primitive.ObjectID
}

type Result struct {
	OrderID    string `json:"orderId"`
	SessionID  string `json:"sessionId"`
	SessionURL string `json:"url"`
	Total      int64  `json:"total"`
}

type pricedLine struct {
	item    models.OrderItem
	product models.Product
}

// Checkout reserves stock and records a PENDING order in one transaction, then
// opens a hosted payment session for it. A failed session releases the
// reservation before returning ErrPaymentUnavailable.
func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	items, err := mergeItems(req.Items)
	if err != nil {
		return Result{}, err
	}

	order := models.Order{
		UserID:   req.UserID,
		IsGuest:  req.UserID == nil,
		Shipping: trimAddress(req.Shipping),
		CouponID: req.CouponID,
		Status:   models.OrderStatusPending,
	}
	if order.IsGuest {
		if err := s.applyGuest(&order, req.Guest); err != nil {
			return Result{}, err
		}
	}

	if req.ShippingCost != nil {
		if *req.ShippingCost < 0 {
			return Result{}, ErrInvalidShipping
		}
		order.ShippingCost = *req.ShippingCost
	} else {
		order.ShippingCost = shipping.EstimateByComune(order.Shipping.City, order.Shipping.Region).Cost
	}

	var lines []pricedLine
	err = s.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		lines = lines[:0]
		now := s.clock()

		if order.IsGuest && order.GuestRUT != "" {
			taken, err := s.store.UserExistsWithRUT(txCtx, order.GuestRUT)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateIdentity
			}
		}

		var subtotal int64
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			product, err := s.store.GetProduct(txCtx, it.ProductID)
			if errors.Is(err, ErrProductNotFound) {
				return &ProductError{ProductID: it.ProductID}
			}
			if err != nil {
				return err
			}
			if product.Stock < it.Quantity {
				return &StockError{ProductID: product.ID, Name: product.Name, Available: product.Stock, Requested: it.Quantity}
			}

			ok, err := s.store.DecrementStock(txCtx, product.ID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &StockError{ProductID: product.ID, Name: product.Name, Available: product.Stock, Requested: it.Quantity}
			}

			line := models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				UnitPrice: pricing.EffectivePrice(product.Price, product.Discount),
				Quantity:  it.Quantity,
			}
			subtotal += line.LineTotal()
			orderItems = append(orderItems, line)
			lines = append(lines, pricedLine{item: line, product: product})
		}

		var discount int64
		couponCode := ""
		if order.CouponID != nil {
			coupon, err := s.store.GetCoupon(txCtx, *order.CouponID)
			if err != nil {
				return err
			}
			discount, err = coupons.Evaluate(coupon, subtotal, now)
			if err != nil {
				return err
			}
			ok, err := s.store.IncrementCouponUsage(txCtx, coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				return coupons.ErrExhausted
			}
			couponCode = coupon.Code
		}

		total := subtotal - discount + order.ShippingCost
		if total <= 0 {
			return ErrNonPositiveTotal
		}

		o := order
		o.ID = primitive.NilObjectID
		o.Items = orderItems
		o.Subtotal = subtotal
		o.Discount = discount
		o.CouponCode = couponCode
		o.Total = total
		o.CreatedAt = now
		o.UpdatedAt = now
		if err := s.store.InsertOrder(txCtx, &o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log := logging.FromContext(ctx, s.logger).With(zap.String("orderId", order.ID.Hex()))

	session, err := s.payments.CreateSession(ctx, s.sessionRequest(order, lines))
	if err != nil {
		log.Error("payment session failed, releasing reservation", zap.Error(err))
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if _, relErr := s.ReleaseOrder(relCtx, order.ID, ReasonPaymentFailed); relErr != nil {
			log.Error("release after payment failure failed, sweeper will retry", zap.Error(relErr))
		}
		return Result{}, errors.Join(ErrPaymentUnavailable, err)
	}

	if err := s.store.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		log.Error("could not attach payment session to order", zap.String("sessionId", session.ID), zap.Error(err))
	}

	if order.IsGuest {
		log.Info("guest order created", zap.Int64("total", order.Total))
	} else {
		log.Info("order created", zap.String("userId", order.UserID.Hex()), zap.Int64("total", order.Total))
	}

	return Result{
		OrderID:    order.ID.Hex(),
		SessionID:  session.ID,
		SessionURL: session.URL,
		Total:      order.Total,
	}, nil
}

func (s *Service) applyGuest(order *models.Order, g Guest) error {
	name := strings.TrimSpace(g.Name)
	email := strings.ToLower(strings.TrimSpace(g.Email))
	if name == "" || email == "" {
		return ErrGuestInfoRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrGuestInfoRequired
	}
	order.GuestName = name
	order.GuestEmail = email

	if strings.TrimSpace(g.RUT) != "" {
		cleaned, err := rut.Normalize(g.RUT)
		if err != nil {
			return ErrInvalidRUT
		}
		order.GuestRUT = cleaned
	}
	return nil
}

func (s *Service) sessionRequest(order models.Order, lines []pricedLine) payments.SessionRequest {
	id := order.ID.Hex()
	items := make([]payments.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, payments.LineItem{
			Name:        l.item.Name,
			Description: l.product.Description,
			ImageURL:    l.product.Thumbnail(),
			UnitAmount:  l.item.UnitPrice,
			Quantity:    int64(l.item.Quantity),
		})
	}

	req := payments.SessionRequest{
		OrderID:      id,
		Currency:     s.currency,
		Items:        items,
		ShippingCost: order.ShippingCost,
		Discount:     order.Discount,
		SuccessURL:   s.frontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    s.frontendURL + "/cart",
		Metadata: map[string]string{
			"orderId": id,
			"guest":   strconv.FormatBool(order.IsGuest),
			"city":    order.Shipping.City,
			"region":  order.Shipping.Region,
		},
		IdempotencyKey: "checkout-" + id,
	}
	if order.IsGuest {
		req.CustomerEmail = order.GuestEmail
	}
	return req
}

// MaxLineQuantity caps the units of one product in a single order.
const MaxLineQuantity = 1000

func mergeItems(in []Item) ([]Item, error) {
	if len(in) == 0 {
		return nil, ErrEmptyCart
	}
	index := make(map[primitive.ObjectID]int, len(in))
	out := make([]Item, 0, len(in))
	for _, it := range in {
		if it.Quantity <= 0 || it.Quantity > MaxLineQuantity {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[it.ProductID]; ok {
			if out[i].Quantity > MaxLineQuantity-it.Quantity {
				return nil, ErrInvalidQuantity
			}
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func trimAddress(a models.ShippingAddress) models.ShippingAddress {
	return models.ShippingAddress{
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.Region),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}
