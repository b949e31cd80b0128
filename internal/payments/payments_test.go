package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

type fakeSessions struct {
	params  *stripe.CheckoutSessionParams
	expired []string
	err     error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeSessions) Expire(id string, _ *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error) {
	f.expired = append(f.expired, id)
	return &stripe.CheckoutSession{ID: id}, f.err
}

type fakeCoupons struct {
	params *stripe.CouponParams
}

func (f *fakeCoupons) New(params *stripe.CouponParams) (*stripe.Coupon, error) {
	f.params = params
	return &stripe.Coupon{ID: "co_1"}, nil
}

func newTestProvider(t *testing.T) (*StripeProvider, *fakeSessions, *fakeCoupons) {
	t.Helper()
	sessions, coupons := &fakeSessions{}, &fakeCoupons{}
	p, err := NewStripeProvider(StripeConfig{clients: &stripeClients{sessions: sessions, coupons: coupons}})
	require.NoError(t, err)
	return p, sessions, coupons
}

func TestCreateSessionItemizesOrder(t *testing.T) {
	p, sessions, coupons := newTestProvider(t)

	req := SessionRequest{
		OrderID:  "ord1",
		Currency: "CLP",
		Items: []LineItem{
			{Name: "Osito Lua", Description: "Peluche 30cm", ImageURL: "https://cdn/osito.jpg", UnitAmount: 10000, Quantity: 2},
		},
		ShippingCost:   5000,
		Discount:       2000,
		CustomerEmail:  "guest@example.cl",
		SuccessURL:     "https://ositoslua.cl/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      "https://ositoslua.cl/cart",
		Metadata:       map[string]string{"orderId": "ord1"},
		IdempotencyKey: "checkout-ord1",
	}
	session, err := p.CreateSession(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, int64(23000), req.Total())

	params := sessions.params
	require.NotNil(t, params)
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, "clp", *params.LineItems[0].PriceData.Currency)
	assert.Equal(t, int64(10000), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, int64(2), *params.LineItems[0].Quantity)
	assert.Equal(t, []*string{stripe.String("https://cdn/osito.jpg")}, params.LineItems[0].PriceData.ProductData.Images)
	assert.Equal(t, int64(5000), *params.LineItems[1].PriceData.UnitAmount)
	assert.Equal(t, "guest@example.cl", *params.CustomerEmail)
	assert.Equal(t, "checkout-ord1", *params.IdempotencyKey)
	assert.Equal(t, "ord1", params.Metadata["orderId"])

	require.NotNil(t, coupons.params)
	assert.Equal(t, int64(2000), *coupons.params.AmountOff)
	require.Len(t, params.Discounts, 1)
	assert.Equal(t, "co_1", *params.Discounts[0].Coupon)
}

func TestCreateSessionWithoutDiscountOrShipping(t *testing.T) {
	p, sessions, coupons := newTestProvider(t)

	_, err := p.CreateSession(context.Background(), SessionRequest{
		Currency: "clp",
		Items:    []LineItem{{Name: "Osito", UnitAmount: 9990, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Len(t, sessions.params.LineItems, 1)
	assert.Nil(t, coupons.params)
	assert.Empty(t, sessions.params.Discounts)
}

func TestCreateSessionWrapsProviderError(t *testing.T) {
	p, sessions, _ := newTestProvider(t)
	sessions.err = errors.New("card network down")

	_, err := p.CreateSession(context.Background(), SessionRequest{Currency: "clp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card network down")
}

func TestExpireSessionIgnoresBlankID(t *testing.T) {
	p, sessions, _ := newTestProvider(t)
	require.NoError(t, p.ExpireSession(context.Background(), ""))
	require.NoError(t, p.ExpireSession(context.Background(), "cs_1"))
	assert.Equal(t, []string{"cs_1"}, sessions.expired)
}

func sign(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

const completedPayload = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "payment_status": "paid",
    "customer_details": {"email": "buyer@example.cl"},
    "metadata": {"orderId": "65f000000000000000000001", "guest": "true"}
  }}
}`

func TestStripeVerifierDecodesCheckoutSession(t *testing.T) {
	v := NewStripeVerifier("whsec_test")
	payload := []byte(completedPayload)

	evt, err := v.Verify(payload, sign(t, payload, "whsec_test"))
	require.NoError(t, err)
	assert.Equal(t, EventSessionCompleted, evt.Type)
	assert.Equal(t, "cs_test_1", evt.SessionID)
	assert.Equal(t, "paid", evt.PaymentStatus)
	assert.Equal(t, "buyer@example.cl", evt.CustomerEmail)
	assert.Equal(t, "65f000000000000000000001", evt.Metadata["orderId"])
}

func TestStripeVerifierRejectsBadSignature(t *testing.T) {
	v := NewStripeVerifier("whsec_test")
	payload := []byte(completedPayload)

	_, err := v.Verify(payload, "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	_, err = v.Verify(payload, sign(t, payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
