// Package cart holds the customer's cart as an immutable value.
//
// A State maps item ids to lines. A line with quantity 0 is logically absent:
// it is never rendered and does not count towards HasVisibleItems, but it may
// stay in the collection until the next authoritative response replaces it.
//
// Subtotal, tax and total are owned by the order service. They are copied
// from the last server response and never recomputed here; after an
// optimistic change they are stale until the next response arrives.
package cart

import "github.com/shopspring/decimal"

// Quantity bounds. Every quantity held by a State lies in [MinQuantity, MaxQuantity].
const (
	MinQuantity = 0
	MaxQuantity = 9
)

// Clamp limits q to [MinQuantity, MaxQuantity].
func Clamp(q int) int {
	if q < MinQuantity {
		return MinQuantity
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

// Next returns the clamped quantity after applying delta to current.
func Next(current, delta int) int {
	return Clamp(current + delta)
}

// Line is one (item, quantity) pair with the server's pricing for it.
//
// Pending is set when the quantity was changed locally after LineTotal was
// priced; LineTotal then describes the old quantity.
type Line struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Pending   bool            `json:"pending,omitempty"`
}

// Visible reports whether the line is rendered in the order summary.
func (l Line) Visible() bool {
	return l.Quantity > 0
}
