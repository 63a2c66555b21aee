// Package pos implements the checkout cart arithmetic and sale recording.
// All amounts are integer cents; stock is validated in base units.
package pos

import (
	"fmt"
	"sort"

	"github.com/mwangi/pharmos/internal/model"
)

// Line is one cart entry: a product sold in either its base unit or one of
// its pricing variants.
type Line struct {
	Product  model.Product
	Variant  *model.Variant
	Quantity int
}

// UnitPrice returns the price of one sale unit for this line.
func (l Line) UnitPrice() int64 {
	if l.Variant != nil {
		return l.Variant.Price
	}
	return l.Product.BasePrice
}

// Factor returns base units per sale unit.
func (l Line) Factor() int {
	if l.Variant != nil {
		return l.Variant.Factor
	}
	return 1
}

// BaseUnits returns the stock this line consumes, in base units.
func (l Line) BaseUnits() int {
	return l.Quantity * l.Factor()
}

// Subtotal returns the line total in cents.
func (l Line) Subtotal() int64 {
	return l.UnitPrice() * int64(l.Quantity)
}

// UnitName returns the sale unit label.
func (l Line) UnitName() string {
	if l.Variant != nil {
		return l.Variant.UnitName
	}
	return "unit"
}

// lineKey identifies a cart line by product and variant.
type lineKey struct {
	productID int64
	variantID int64 // 0 for base unit
}

// Cart accumulates checkout lines. Adding the same (product, variant) pair
// twice merges quantities.
type Cart struct {
	lines    map[lineKey]*Line
	discount int64
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{lines: make(map[lineKey]*Line)}
}

// Add puts quantity sale units of the product (or variant) into the cart.
func (c *Cart) Add(p model.Product, v *model.Variant, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if v != nil && v.ProductID != p.ID {
		return fmt.Errorf("variant %d does not belong to product %d", v.ID, p.ID)
	}

	key := lineKey{productID: p.ID}
	if v != nil {
		key.variantID = v.ID
	}

	if line, ok := c.lines[key]; ok {
		line.Quantity += quantity
		return nil
	}
	c.lines[key] = &Line{Product: p, Variant: v, Quantity: quantity}
	return nil
}

// SetQuantity changes a line's quantity; zero removes the line.
// Unknown lines are a no-op.
func (c *Cart) SetQuantity(productID, variantID int64, quantity int) {
	key := lineKey{productID: productID, variantID: variantID}
	line, ok := c.lines[key]
	if !ok {
		return
	}
	if quantity <= 0 {
		delete(c.lines, key)
		return
	}
	line.Quantity = quantity
}

// Remove deletes a line from the cart.
func (c *Cart) Remove(productID, variantID int64) {
	delete(c.lines, lineKey{productID: productID, variantID: variantID})
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = make(map[lineKey]*Line)
	c.discount = 0
}

// SetDiscount applies a flat discount in cents. Negative values are
// ignored; the discount is capped at the subtotal during Total.
func (c *Cart) SetDiscount(cents int64) {
	if cents < 0 {
		return
	}
	c.discount = cents
}

// Lines returns the cart contents ordered by product name.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Product.Name != out[j].Product.Name {
			return out[i].Product.Name < out[j].Product.Name
		}
		return out[i].UnitName() < out[j].UnitName()
	})
	return out
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Subtotal returns the sum of line subtotals.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

// Discount returns the applied discount, capped at the subtotal.
func (c *Cart) Discount() int64 {
	if subtotal := c.Subtotal(); c.discount > subtotal {
		return subtotal
	}
	return c.discount
}

// Total returns subtotal minus discount. Never negative.
func (c *Cart) Total() int64 {
	return c.Subtotal() - c.Discount()
}
