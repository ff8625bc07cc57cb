// Package cart holds the storefront cart: a pure transition function over
// tagged commands, a store that owns the live state, and the durable mirror
// that lets a restarted process resume the same cart.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// LineItem is one product in the cart. Name, Price and Image are captured
// when the product is first added and never refreshed from the catalog.
type LineItem struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// State is the cart aggregate. Total and ItemCount are always derived from
// Items; IsOpen is a transient visibility flag that is never persisted.
type State struct {
	Items     []LineItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
	IsOpen    bool       `json:"isOpen"`
}

// Totals computes the derived total and unit count for items. The sum is
// exact in decimal and converted to float once, so it never drifts.
func Totals(items []LineItem) (float64, int) {
	total := decimal.Zero
	count := 0
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	f, _ := total.Float64()
	return f, count
}

// withItems returns s carrying items with totals recomputed from scratch.
func (s State) withItems(items []LineItem) State {
	s.Items = items
	s.Total, s.ItemCount = Totals(items)
	return s
}

// Clone returns a deep copy so callers never share the backing array.
func (s State) Clone() State {
	s.Items = slices.Clone(s.Items)
	if s.Items == nil {
		s.Items = []LineItem{}
	}
	return s
}

func indexOf(items []LineItem, id int) int {
	return slices.IndexFunc(items, func(it LineItem) bool { return it.ID == id })
}
