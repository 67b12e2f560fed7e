// Package cart is the in-memory order builder for the single active order.
//
// A Cart is not safe for concurrent use; callers serialize access.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/cafe-pos/internal/catalog"
	"github.com/MikeMC777/cafe-pos/internal/money"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrIndexOutOfRange = errors.New("cart line index out of range")
	ErrItemUnavailable = errors.New("menu item is not available")
	ErrCommitted       = errors.New("cart already checked out; clear it to start a new order")
)

type State string

const (
	StateActive    State = "active"
	StateCommitted State = "committed"
)

// Line is one catalog item with its quantity. UnitPrice is a snapshot taken
// when the item was first added.
type Line struct {
	MenuItemID int64           `json:"menu_item_id"`
	Name       string          `json:"name"`
	Category   string          `json:"category,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Note       string          `json:"note,omitempty"`
}

// Total is UnitPrice x Quantity.
func (l Line) Total() decimal.Decimal {
	return money.LineTotal(l.UnitPrice, l.Quantity)
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type Cart struct {
	taxRate decimal.Decimal
	lines   []Line
	state   State
}

func New(taxRate decimal.Decimal) *Cart {
	return &Cart{taxRate: taxRate, state: StateActive}
}

func (c *Cart) TaxRate() decimal.Decimal { return c.taxRate }
func (c *Cart) State() State             { return c.state }
func (c *Cart) Len() int                 { return len(c.lines) }
func (c *Cart) IsEmpty() bool            { return len(c.lines) == 0 }

// Lines returns a copy of the current lines in display order.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

// AddItem adds quantity of item. An item already in the cart gets its
// quantity increased instead of a second line; a non-empty note replaces
// the line's note.
func (c *Cart) AddItem(item catalog.MenuItem, quantity int, note string) error {
	if c.state == StateCommitted {
		return ErrCommitted
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if !item.Available {
		return ErrItemUnavailable
	}
	for i := range c.lines {
		if c.lines[i].MenuItemID == item.ID {
			c.lines[i].Quantity += quantity
			if note != "" {
				c.lines[i].Note = note
			}
			return nil
		}
	}
	c.lines = append(c.lines, Line{
		MenuItemID: item.ID,
		Name:       item.Name,
		Category:   item.CategoryName,
		UnitPrice:  item.Price,
		Quantity:   quantity,
		Note:       note,
	})
	return nil
}

func (c *Cart) SetQuantity(index, quantity int) error {
	if c.state == StateCommitted {
		return ErrCommitted
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if index < 0 || index >= len(c.lines) {
		return ErrIndexOutOfRange
	}
	c.lines[index].Quantity = quantity
	return nil
}

// RemoveLine deletes the line at index; later lines shift down by one.
func (c *Cart) RemoveLine(index int) error {
	if c.state == StateCommitted {
		return ErrCommitted
	}
	if index < 0 || index >= len(c.lines) {
		return ErrIndexOutOfRange
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Clear empties the cart and makes it accept a new order.
func (c *Cart) Clear() {
	c.lines = nil
	c.state = StateActive
}

// MarkCommitted empties the cart after a successful checkout.
func (c *Cart) MarkCommitted() {
	c.lines = nil
	c.state = StateCommitted
}

// Totals computes subtotal, tax at the cart's rate, and total.
func (c *Cart) Totals() Totals {
	return ComputeTotals(c.lines, c.taxRate)
}

// ComputeTotals is the pricing rule shared with the ledger.
func ComputeTotals(lines []Line, taxRate decimal.Decimal) Totals {
	subtotal := money.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	tax := money.Tax(subtotal, taxRate)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}
