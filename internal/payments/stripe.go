package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

type stripeCouponAPI interface {
	New(params *stripe.CouponParams) (*stripe.Coupon, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
	coupons  stripeCouponAPI
}

type StripeConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   *zap.Logger
	clients  *stripeClients
}

// StripeProvider implements Provider with Stripe Checkout.
type StripeProvider struct {
	api    stripeClients
	logger *zap.Logger
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.clients != nil {
		clients = *cfg.clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{sessions: sc.CheckoutSessions, coupons: sc.Coupons}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeProvider{api: clients, logger: logger.Named("stripe")}, nil
}

// CreateSession itemizes every product line plus shipping. Stripe rejects
// negative line amounts, so the order discount becomes a one-off amount_off
// coupon attached to the session; the charged total still equals req.Total().
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentMethodTypes: stripe.StringSlice([]string{
			string(stripe.PaymentMethodTypeCard),
		}),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.OrderID != "" {
		params.ClientReferenceID = stripe.String(req.OrderID)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items)+1)
	for _, item := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(max(item.Quantity, 1)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
		})
	}
	if req.ShippingCost > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(req.ShippingCost),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("📦 Envío"),
				},
			},
		})
	}
	params.LineItems = lineItems

	if req.Discount > 0 {
		couponParams := &stripe.CouponParams{
			AmountOff:      stripe.Int64(req.Discount),
			Currency:       stripe.String(currency),
			Duration:       stripe.String(string(stripe.CouponDurationOnce)),
			Name:           stripe.String("🎟️ Descuento aplicado"),
			MaxRedemptions: stripe.Int64(1),
		}
		couponParams.Context = ctx
		if req.IdempotencyKey != "" {
			couponParams.SetIdempotencyKey(req.IdempotencyKey + "-discount")
		}
		coupon, err := p.api.coupons.New(couponParams)
		if err != nil {
			return Session{}, fmt.Errorf("stripe: create discount: %w", err)
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(coupon.ID)}}
	}

	session, err := p.api.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger.Info("checkout session created",
		zap.String("sessionId", session.ID),
		zap.String("orderId", req.OrderID),
		zap.Int64("amount", req.Total()),
	)
	return Session{ID: session.ID, URL: session.URL}, nil
}

// ExpireSession closes an open session so an abandoned order can no longer be paid.
func (p *StripeProvider) ExpireSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.api.sessions.Expire(sessionID, params); err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 400 {
			// already complete or expired
			return nil
		}
		return fmt.Errorf("stripe: expire session: %w", err)
	}
	return nil
}
