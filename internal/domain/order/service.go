package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/cart"
	"github.com/vzdolci/storefront/internal/domain/catalog"
	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/shipping"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems = fmt.Errorf("items required")
	ErrZeroTotal  = fmt.Errorf("order total must be greater than 0")
)

// ProductNotFoundError indicates a cart line references an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// PriceMismatchError indicates a cart line carries a price that no longer
// matches the catalog. Stale carts must not buy at old prices.
type PriceMismatchError struct {
	ProductID string
	Cart      decimal.Decimal
	Catalog   decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price for product %s changed from %s to %s",
		e.ProductID, e.Cart.StringFixed(2), e.Catalog.StringFixed(2))
}

// CreateRequest holds the input for building an order.
type CreateRequest struct {
	// ID is reused when the checkout retries an attempt; when empty a new
	// id is generated.
	ID       string
	Items    []cart.Item
	Customer customer.Info
	Shipping shipping.Info
}

// Service builds, validates, and persists orders.
type Service struct {
	products catalog.Repository
	orders   Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(products catalog.Repository, orders Repository) *Service {
	return &Service{products: products, orders: orders}
}

// Create validates the cart lines against the catalog, computes the total,
// and persists the order in pending state.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items := make([]Item, len(req.Items))
	total := decimal.Zero
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.Product.ID}
		}

		p, err := s.products.GetByID(ctx, line.Product.ID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: line.Product.ID}
			}
			return nil, fmt.Errorf("get product %q: %w", line.Product.ID, err)
		}
		if !p.Price.Equal(line.Product.Price) {
			return nil, &PriceMismatchError{
				ProductID: p.ID,
				Cart:      line.Product.Price,
				Catalog:   p.Price,
			}
		}

		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
		}
		total = total.Add(items[i].Subtotal())
	}

	total = total.Round(2)
	if !total.IsPositive() {
		return nil, ErrZeroTotal
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now()
	o := &Order{
		ID:        id,
		Items:     items,
		Customer:  req.Customer,
		Shipping:  req.Shipping,
		Status:    StatusPending,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// Get loads an order by id.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("get order %q: %w", id, err)
	}
	return *o, nil
}

// Save persists the given order version, typically after a WithPayment or
// WithStatus transformation.
func (s *Service) Save(ctx context.Context, o Order) error {
	if err := s.orders.Update(ctx, &o); err != nil {
		return fmt.Errorf("update order %q: %w", o.ID, err)
	}
	return nil
}
