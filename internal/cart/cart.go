// Package cart accumulates selected menu items for one view (a terminal
// or a customer display) until checkout.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

var (
	ErrLineNotFound     = errors.New("cart line not found")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
)

// UnitPrice validates sel against the item's option groups and returns
// the base price plus every selected choice's delta.
func UnitPrice(item model.MenuItem, sel model.Selections) (decimal.Decimal, error) {
	norm := sel.Normalize()
	for kind := range norm {
		if _, ok := item.Group(kind); !ok {
			return decimal.Zero, fmt.Errorf("%w: %s has no %s option", ErrInvalidSelection, item.Name, kind)
		}
	}
	price := item.Price
	for _, g := range item.Customizations {
		labels := norm[g.Kind]
		if g.Required && len(labels) == 0 {
			return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalidSelection, g.DisplayName())
		}
		if !g.Multi && len(labels) > 1 {
			return decimal.Zero, fmt.Errorf("%w: pick one %s", ErrInvalidSelection, g.DisplayName())
		}
		for _, l := range labels {
			ch, ok := g.Choice(l)
			if !ok {
				return decimal.Zero, fmt.Errorf("%w: %q is not a %s choice", ErrInvalidSelection, l, g.DisplayName())
			}
			price = price.Add(ch.PriceDelta)
		}
	}
	return price, nil
}

// Cart is safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines []model.CartLine
}

// New returns an empty cart.
func New() *Cart { return &Cart{} }

// Add puts one unit of item into the cart. A line with the same item and
// the same set of selections is incremented instead of duplicated. It
// returns the index of the affected line.
func (c *Cart) Add(item model.MenuItem, sel model.Selections) (int, error) {
	return c.AddN(item, sel, 1)
}

// AddN is Add for qty units at once, applied under a single lock so the
// returned index is the line that received them.
func (c *Cart) AddN(item model.MenuItem, sel model.Selections, qty int) (int, error) {
	if qty <= 0 {
		return -1, ErrInvalidQuantity
	}
	unit, err := UnitPrice(item, sel)
	if err != nil {
		return -1, err
	}
	sel = sel.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		l := &c.lines[i]
		if l.Item.ID == item.ID && l.Selections.Equal(sel) {
			l.Quantity += qty
			l.Total = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
			return i, nil
		}
	}
	c.lines = append(c.lines, model.CartLine{
		Item:       item,
		Quantity:   qty,
		Selections: sel,
		UnitPrice:  unit,
		Total:      unit.Mul(decimal.NewFromInt(int64(qty))),
	})
	return len(c.lines) - 1, nil
}

// Remove takes one unit off the line and drops it at zero.
func (c *Cart) Remove(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	l := &c.lines[index]
	l.Quantity--
	if l.Quantity <= 0 {
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
		return nil
	}
	l.Total = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	return nil
}

// SetQuantity overwrites a line's quantity. Zero removes the line.
func (c *Cart) SetQuantity(index, qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	if qty == 0 {
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
		return nil
	}
	l := &c.lines[index]
	l.Quantity = qty
	l.Total = l.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total sums every line total. There is no tax or discount model.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total)
	}
	return sum
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// HasFood reports whether any line needs the kitchen.
func (c *Cart) HasFood() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l.Item.Type == model.ItemFood {
			return true
		}
	}
	return false
}

// Registry hands out one cart per view id.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{carts: map[string]*Cart{}} }

// Get returns the cart of view, creating it on first use.
func (r *Registry) Get(view string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[view]
	if !ok {
		c = New()
		r.carts[view] = c
	}
	return c
}
