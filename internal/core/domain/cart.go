package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one product line inside a cart. UnitPrice is the catalog
// price read when the line was last touched; the checkout snapshot reads
// the live catalog price instead.
type CartItem struct {
	ID        string
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Cart holds a single user's pending line items. TotalPrice is derived
// from the items and recomputed after every mutation; it is never stored
// out of sync with them.
type Cart struct {
	ID         string
	UserID     string
	Items      []CartItem
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewCart(id, userID string, now time.Time) *Cart {
	return &Cart{
		ID:         id,
		UserID:     userID,
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddItem appends a new line for the product or, if one exists, increments
// its quantity. Adding is cumulative: repeating the call accumulates.
func (c *Cart) AddItem(itemID string, p Product, quantity int, now time.Time) {
	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			c.Items[i].Quantity += quantity
			c.Items[i].UnitPrice = p.Price
			c.touch(now)
			return
		}
	}
	c.Items = append(c.Items, CartItem{
		ID:        itemID,
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
	})
	c.touch(now)
}

// UpdateItemQuantity sets the line's quantity; a quantity <= 0 removes the
// line. Unknown item IDs are a no-op.
func (c *Cart) UpdateItemQuantity(itemID string, quantity int, now time.Time) {
	if quantity <= 0 {
		c.RemoveItem(itemID, now)
		return
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			c.touch(now)
			return
		}
	}
}

// RemoveItem deletes the line if present; absent lines are a no-op.
func (c *Cart) RemoveItem(itemID string, now time.Time) {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch(now)
			return
		}
	}
}

// Clear empties the cart and resets the total. Used after a successful
// checkout; the cart record itself survives.
func (c *Cart) Clear(now time.Time) {
	c.Items = nil
	c.touch(now)
}

// SetItems replaces the cart's lines wholesale and recomputes the total.
func (c *Cart) SetItems(items []CartItem, now time.Time) {
	c.Items = items
	c.touch(now)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) touch(now time.Time) {
	c.recalculateTotal()
	c.UpdatedAt = now
}

func (c *Cart) recalculateTotal() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalPrice = total
}
