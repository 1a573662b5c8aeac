// Package order defines the order aggregate and the service that builds and
// persists orders from cart contents.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/payment"
	"github.com/vzdolci/storefront/internal/domain/shipping"
)

// Status tracks an order through the payment workflow.
type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusCancelled       Status = "cancelled"
)

// Item is one order line with the price captured at order time.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns unit price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order binds items, customer, shipping, and payment into one record. Orders
// are treated as immutable values: state changes go through the With*
// transformations, which return an updated copy.
type Order struct {
	ID        string          `json:"id"`
	Items     []Item          `json:"items"`
	Customer  customer.Info   `json:"customer"`
	Shipping  shipping.Info   `json:"shipping"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Payment   *payment.Info   `json:"payment,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// WithPayment returns a copy of the order carrying the payment record. An
// approved payment marks the order paid; otherwise it is awaiting payment.
func (o Order) WithPayment(p payment.Info) Order {
	o.Payment = &p
	if p.Status.IsSuccessful() {
		o.Status = StatusPaid
	} else {
		o.Status = StatusAwaitingPayment
	}
	o.UpdatedAt = time.Now()
	return o
}

// WithStatus returns a copy of the order in the given status.
func (o Order) WithStatus(s Status) Order {
	o.Status = s
	o.UpdatedAt = time.Now()
	return o
}

// IsPaid reports whether the latest payment was approved.
func (o Order) IsPaid() bool {
	return o.Payment != nil && o.Payment.Status.IsSuccessful()
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order. Checkout retries reuse the order id, so an
	// existing order with the same id is replaced.
	Create(ctx context.Context, o *Order) error
	// Update replaces the stored order with the given version.
	Update(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}
