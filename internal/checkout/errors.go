package checkout

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and the per-product limit")
	ErrGuestInfoRequired  = errors.New("guest name and email are required")
	ErrInvalidRUT         = errors.New("invalid rut")
	ErrDuplicateIdentity  = errors.New("rut belongs to a registered account")
	ErrInvalidShipping    = errors.New("shipping cost must be >= 0")
	ErrNonPositiveTotal   = errors.New("order total must be greater than zero")
	ErrPaymentUnavailable = errors.New("payment session could not be created")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOrderNotFound      = errors.New("order not found")
	ErrMissingOrderID     = errors.New("event has no order id")
)

// StockError reports which line could not be reserved.
type StockError struct {
	ProductID primitive.ObjectID
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductID.Hex(), e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type ProductError struct {
	ProductID primitive.ObjectID
}

func (e *ProductError) Error() string {
	return "product not found: " + e.ProductID.Hex()
}

func (e *ProductError) Unwrap() error { return ErrProductNotFound }
