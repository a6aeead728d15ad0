package order

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// NormalizeID returns the NFC form of an item id. Ids are compared in this
// form everywhere: menu lookups, cart lines and repository keys.
func NormalizeID(id string) string {
	return norm.NFC.String(id)
}

// Item is one priced line of an order.
type Item struct {
	ID        string          `json:"id"`
	Code      string          `json:"code,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Order is an order snapshot as computed by the order service.
type Order struct {
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	GST      decimal.Decimal `json:"gst"`
	Total    decimal.Decimal `json:"total"`
}

// Empty returns an order with no items and zero totals.
func Empty() Order {
	return Order{Items: []Item{}}
}

// PlacedOrder is a committed order as listed by the sales summary.
type PlacedOrder struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Order
}

// PizzaCount returns the total quantity across all lines.
func (o PlacedOrder) PizzaCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Qty
	}
	return n
}

// Confirmation is returned by a successful commit.
type Confirmation struct {
	OrderID string `json:"order_id"`
}

// Summary aggregates all committed orders.
type Summary struct {
	Orders        int             `json:"orders"`
	RevenueExGST  decimal.Decimal `json:"revenue_ex_gst"`
	GST           decimal.Decimal `json:"gst"`
	RevenueIncGST decimal.Decimal `json:"revenue_inc_gst"`
	Counts        map[string]int  `json:"counts"`
}

// DailySummary aggregates committed orders placed on one UTC date.
type DailySummary struct {
	Date          string          `json:"date"` // YYYY-MM-DD
	RevenueIncGST decimal.Decimal `json:"revenue_inc_gst"`
	GST           decimal.Decimal `json:"gst"`
	RevenueExGST  decimal.Decimal `json:"revenue_ex_gst"`
	PizzasSold    int             `json:"pizzas_sold"`
}
