package domain

import (
	"fmt"
	"slices"
	"sync"

	apperrors "github.com/utafrali/posledger/pkg/errors"
)

// CartLine is one product's entry in the cart. UnitPrice is frozen when the
// product is first added; StockSnapshot is the stock seen on the last
// successful add.
type CartLine struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	UnitPrice     int64  `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	StockSnapshot int    `json:"stock_snapshot"`
}

// LineTotal returns quantity * unit price.
func (l CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// CartSnapshot is a consistent copy of the cart taken under its lock.
type CartSnapshot struct {
	SessionID string
	Version   int
	Lines     []CartLine
}

// Cart holds the lines of the in-progress transaction of one terminal.
// Mutations are serialized; readers receive copies.
//
// Version increases with every mutation, so (SessionID, Version) identifies
// one exact cart content.
type Cart struct {
	mu        sync.Mutex
	sessionID string
	version   int
	lines     []CartLine
}

// NewCart creates an empty cart for a checkout session.
func NewCart(sessionID string) *Cart {
	return &Cart{sessionID: sessionID}
}

func (c *Cart) indexOf(productID string) int {
	return slices.IndexFunc(c.lines, func(l CartLine) bool { return l.ProductID == productID })
}

// AddLine adds qty units of p. An existing line is incremented; its unit
// price stays as first added and its stock snapshot is refreshed from p.
// Adding past p.Stock fails and leaves the cart unchanged.
func (c *Cart) AddLine(p Product, qty int) (CartLine, error) {
	if qty < 1 {
		return CartLine{}, apperrors.InvalidInput("quantity must be at least 1")
	}
	if !p.InStock() {
		return CartLine{}, &StockError{Kind: ErrOutOfStock, ProductID: p.ID, Name: p.Name}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(p.ID)
	current := 0
	if i >= 0 {
		current = c.lines[i].Quantity
	}
	if current+qty > p.Stock {
		return CartLine{}, &StockError{
			Kind:      ErrInsufficientStock,
			ProductID: p.ID,
			Name:      p.Name,
			Available: p.Stock - current,
			Requested: qty,
		}
	}

	if i < 0 {
		c.lines = append(c.lines, CartLine{
			ProductID:     p.ID,
			Name:          p.Name,
			UnitPrice:     p.SellPrice,
			Quantity:      qty,
			StockSnapshot: p.Stock,
		})
		i = len(c.lines) - 1
	} else {
		c.lines[i].Quantity += qty
		c.lines[i].StockSnapshot = p.Stock
	}
	c.version++

	return c.lines[i], nil
}

// SetQuantity sets the quantity of an existing line. qty < 1 removes the
// line. A quantity above the line's stock snapshot fails without changes.
func (c *Cart) SetQuantity(productID string, qty int) (CartLine, error) {
	if qty < 1 {
		c.RemoveLine(productID)
		return CartLine{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return CartLine{}, fmt.Errorf("set quantity of %s: %w", productID, ErrLineNotFound)
	}
	line := c.lines[i]
	if qty > line.StockSnapshot {
		return CartLine{}, &StockError{
			Kind:      ErrInsufficientStock,
			ProductID: line.ProductID,
			Name:      line.Name,
			Available: line.StockSnapshot,
			Requested: qty,
		}
	}

	if qty != line.Quantity {
		c.lines[i].Quantity = qty
		c.version++
	}
	return c.lines[i], nil
}

// RemoveLine removes the line for productID. Removing a missing line is a
// no-op.
func (c *Cart) RemoveLine(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(productID); i >= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
		c.version++
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) > 0 {
		c.lines = nil
		c.version++
	}
}

// Settle removes what a committed sale took out of the cart. When the cart
// is still at the snapshot's version it is simply emptied; otherwise the
// committed quantities are subtracted line by line so changes made while the
// sale was in flight survive.
func (c *Cart) Settle(committed CartSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version == committed.Version {
		if len(c.lines) > 0 {
			c.lines = nil
			c.version++
		}
		return
	}

	changed := false
	for _, sold := range committed.Lines {
		i := c.indexOf(sold.ProductID)
		if i < 0 {
			continue
		}
		changed = true
		if c.lines[i].Quantity <= sold.Quantity {
			c.lines = slices.Delete(c.lines, i, i+1)
			continue
		}
		c.lines[i].Quantity -= sold.Quantity
	}
	if changed {
		c.version++
	}
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

// Snapshot returns the session, version and lines as one consistent value.
func (c *Cart) Snapshot() CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CartSnapshot{
		SessionID: c.sessionID,
		Version:   c.version,
		Lines:     slices.Clone(c.lines),
	}
}

// Subtotal is the sum of quantity * unit price over all lines.
func (c *Cart) Subtotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return subtotal(c.lines)
}

// Tax is always zero; the terminal does not model taxation.
func (c *Cart) Tax() int64 {
	return 0
}

// Total is Subtotal plus Tax.
func (c *Cart) Total() int64 {
	return c.Subtotal() + c.Tax()
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// SessionID returns the checkout session the cart belongs to.
func (c *Cart) SessionID() string {
	return c.sessionID
}

// Version returns the mutation counter.
func (c *Cart) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func subtotal(lines []CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.LineTotal()
	}
	return sum
}

// Subtotal of a snapshot.
func (s CartSnapshot) Subtotal() int64 {
	return subtotal(s.Lines)
}
