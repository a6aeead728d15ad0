package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/roach88/papapizza/internal/order"
)

// State is an immutable cart snapshot. The zero value is an empty cart.
//
// Every mutation returns a new State; values handed out by accessors are
// copies, so a snapshot given to a renderer cannot change under it.
type State struct {
	lines    map[string]Line
	order    []string // insertion order of keys in lines
	subtotal decimal.Decimal
	tax      decimal.Decimal
	total    decimal.Decimal
	stale    bool
}

// Empty returns a cart with no lines and zero totals.
func Empty() State {
	return State{}
}

// FromOrder builds the authoritative state from a server response.
//
// Lines keep the response order. Ids are NFC-normalised and quantities are
// clamped into range. When the response repeats an id the last occurrence
// wins but keeps the position of the first.
func FromOrder(o order.Order) State {
	s := State{
		lines:    make(map[string]Line, len(o.Items)),
		order:    make([]string, 0, len(o.Items)),
		subtotal: o.Subtotal,
		tax:      o.GST,
		total:    o.Total,
	}
	for _, it := range o.Items {
		id := order.NormalizeID(it.ID)
		if _, seen := s.lines[id]; !seen {
			s.order = append(s.order, id)
		}
		s.lines[id] = Line{
			ItemID:    id,
			Name:      it.Name,
			Quantity:  Clamp(it.Qty),
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		}
	}
	return s
}

// Quantity returns the quantity for itemID, 0 when absent.
func (s State) Quantity(itemID string) int {
	return s.lines[itemID].Quantity
}

// Line returns the line for itemID.
func (s State) Line(itemID string) (Line, bool) {
	l, ok := s.lines[itemID]
	return l, ok
}

// Lines returns every line, including zero-quantity ones, in insertion order.
func (s State) Lines() []Line {
	out := make([]Line, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.lines[id])
	}
	return out
}

// VisibleLines returns the lines with quantity > 0, in insertion order.
func (s State) VisibleLines() []Line {
	out := make([]Line, 0, len(s.order))
	for _, id := range s.order {
		if l := s.lines[id]; l.Visible() {
			out = append(out, l)
		}
	}
	return out
}

// HasVisibleItems reports whether any line has quantity > 0. It governs
// whether the order summary and the submit action are shown.
func (s State) HasVisibleItems() bool {
	for _, l := range s.lines {
		if l.Visible() {
			return true
		}
	}
	return false
}

// Len returns the number of lines held, visible or not.
func (s State) Len() int {
	return len(s.order)
}

// WithQuantity returns a copy with itemID set to Clamp(qty). A missing line is
// added as a placeholder with a zero unit price. A line whose quantity changes
// is marked pending, and the copy is marked stale.
func (s State) WithQuantity(itemID string, qty int) State {
	next := State{
		lines:    make(map[string]Line, len(s.lines)+1),
		order:    make([]string, len(s.order), len(s.order)+1),
		subtotal: s.subtotal,
		tax:      s.tax,
		total:    s.total,
		stale:    true,
	}
	for k, v := range s.lines {
		next.lines[k] = v
	}
	copy(next.order, s.order)

	l, ok := next.lines[itemID]
	if !ok {
		l = Line{ItemID: itemID, UnitPrice: decimal.Zero, LineTotal: decimal.Zero, Pending: true}
		next.order = append(next.order, itemID)
	}
	if q := Clamp(qty); q != l.Quantity {
		l.Quantity = q
		l.Pending = true
	}
	next.lines[itemID] = l
	return next
}

// Subtotal is the server-computed subtotal.
func (s State) Subtotal() decimal.Decimal { return s.subtotal }

// Tax is the server-computed GST.
func (s State) Tax() decimal.Decimal { return s.tax }

// Total is the server-computed total.
func (s State) Total() decimal.Decimal { return s.total }

// Stale reports whether an optimistic change has been applied since the
// totals were last set by the server.
func (s State) Stale() bool { return s.stale }

// Equal reports whether two states hold the same lines, order and totals.
func (s State) Equal(o State) bool {
	if len(s.order) != len(o.order) || s.stale != o.stale {
		return false
	}
	if !s.subtotal.Equal(o.subtotal) || !s.tax.Equal(o.tax) || !s.total.Equal(o.total) {
		return false
	}
	for i, id := range s.order {
		if o.order[i] != id {
			return false
		}
		a, b := s.lines[id], o.lines[id]
		if a.Name != b.Name || a.Quantity != b.Quantity || a.Pending != b.Pending ||
			!a.UnitPrice.Equal(b.UnitPrice) || !a.LineTotal.Equal(b.LineTotal) {
			return false
		}
	}
	return true
}

type stateJSON struct {
	Lines    []Line          `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	GST      decimal.Decimal `json:"gst"`
	Total    decimal.Decimal `json:"total"`
	Stale    bool            `json:"stale,omitempty"`
}

// MarshalJSON encodes the visible lines and totals.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Lines:    s.VisibleLines(),
		Subtotal: s.subtotal,
		GST:      s.tax,
		Total:    s.total,
		Stale:    s.stale,
	})
}
