// Package cart implements the shopping cart: an ordered product → quantity
// mapping with computed totals, plus a Store that keeps carts in memory and
// persists debounced snapshots.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/catalog"
)

// Item is one cart line: a shared product reference and a quantity ≥ 1.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price × quantity for the line.
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds the items of one shopper in insertion order. Cart is not safe
// for concurrent use; the Store serializes access.
type Cart struct {
	ID    string
	items []Item
}

// New creates an empty cart with the given id.
func New(id string) *Cart {
	return &Cart{ID: id}
}

// Add inserts the product with quantity 1, or increments the existing line.
func (c *Cart) Add(p catalog.Product) {
	for i := range c.items {
		if c.items[i].Product.ID == p.ID {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, Item{Product: p, Quantity: 1})
}

// Remove deletes the line for productID, if present.
func (c *Cart) Remove(productID string) {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// SetQuantity replaces the quantity for productID. Quantities below 1 are
// ignored; removal is an explicit operation.
func (c *Cart) SetQuantity(productID string, n int) {
	if n < 1 {
		return
	}
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items[i].Quantity = n
			return
		}
	}
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Total returns Σ price × quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount returns the sum of quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

// Snapshot is the persisted form of a cart.
type Snapshot struct {
	ID    string `json:"id"`
	Items []Item `json:"items"`
}

// Snapshot captures the cart for persistence.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{ID: c.ID, Items: c.Items()}
}

// Restore rebuilds a cart from a snapshot.
func Restore(s Snapshot) *Cart {
	c := New(s.ID)
	c.items = make([]Item, len(s.Items))
	copy(c.items, s.Items)
	return c
}
