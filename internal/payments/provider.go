// Package payments creates hosted checkout sessions and verifies provider webhooks.
package payments

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrMissingSignature = errors.New("payments: missing webhook signature")
)

// Event types the storefront reacts to.
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventSessionExpired        = "checkout.session.expired"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

// PaymentStatusPaid is the session payment status once funds are captured.
const PaymentStatusPaid = "paid"

// LineItem is one product line, priced in whole currency units.
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int64
}

type SessionRequest struct {
	OrderID        string
	Currency       string
	Items          []LineItem
	ShippingCost   int64
	Discount       int64
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

// Total is what the hosted page will charge.
func (r SessionRequest) Total() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.UnitAmount * item.Quantity
	}
	return total + r.ShippingCost - r.Discount
}

type Session struct {
	ID  string
	URL string
}

// Provider is a hosted checkout backend.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	ExpireSession(ctx context.Context, sessionID string) error
}

// Event is the provider-neutral part of a webhook notification.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	PaymentStatus string
	CustomerEmail string
	Metadata      map[string]string
}

type WebhookVerifier interface {
	Verify(payload []byte, signature string) (Event, error)
}
