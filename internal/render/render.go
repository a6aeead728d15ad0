// Package render formats menus, carts and sales reports as plain text for
// the terminal.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
)

// EmptyCart is printed instead of an order summary with no visible lines.
const EmptyCart = "Your cart is empty."

// SubmitHint is printed under an order summary that can be submitted.
const SubmitHint = "Submit with: papapizza submit"

const timestampLayout = "2006-01-02 15:04:05"

// Money formats d as dollars with two decimals.
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Menu writes one row per entry in catalog order.
func Menu(w io.Writer, entries []catalog.Entry) error {
	var b strings.Builder
	row := func(id, name, price, qty, tags string) {
		b.WriteString(strings.TrimRight(fmt.Sprintf("%-12s %-20s %8s %4s  %s", id, name, price, qty, tags), " "))
		b.WriteByte('\n')
	}
	row("ID", "NAME", "PRICE", "QTY", "TAGS")
	for _, e := range entries {
		titles := make([]string, 0, len(e.Tags))
		for _, t := range e.Tags {
			titles = append(titles, t.Title)
		}
		row(e.ID, e.Name, Money(e.Price), fmt.Sprint(e.Quantity), strings.Join(titles, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// OrderSummary writes the visible lines of s and its totals. Lines with
// quantity 0 are never shown, and the submit hint appears only when there is
// something to submit.
func OrderSummary(w io.Writer, s cart.State) error {
	if !s.HasVisibleItems() {
		_, err := io.WriteString(w, EmptyCart+"\n")
		return err
	}

	var b strings.Builder
	b.WriteString("Order summary")
	if s.Stale() {
		b.WriteString(" (awaiting confirmation)")
	}
	b.WriteByte('\n')

	for _, l := range s.VisibleLines() {
		name := l.Name
		if name == "" {
			name = l.ItemID
		}
		amount := Money(l.LineTotal)
		if l.Pending {
			amount = "pending"
		}
		fmt.Fprintf(&b, "  %d x %-24s %8s\n", l.Quantity, name, amount)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  %-28s %8s\n", "Subtotal", Money(s.Subtotal()))
	fmt.Fprintf(&b, "  %-28s %8s\n", "GST", Money(s.Tax()))
	fmt.Fprintf(&b, "  %-28s %8s\n", "Total", Money(s.Total()))
	b.WriteByte('\n')
	b.WriteString(SubmitHint + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// SalesSummary writes revenue totals and per-code pizza counts.
func SalesSummary(w io.Writer, s order.Summary) error {
	var b strings.Builder
	b.WriteString("Sales summary\n")
	fmt.Fprintf(&b, "  %-22s %10d\n", "Orders", s.Orders)
	fmt.Fprintf(&b, "  %-22s %10s\n", "Revenue (ex GST)", Money(s.RevenueExGST))
	fmt.Fprintf(&b, "  %-22s %10s\n", "GST", Money(s.GST))
	fmt.Fprintf(&b, "  %-22s %10s\n", "Revenue (inc GST)", Money(s.RevenueIncGST))

	if len(s.Counts) > 0 {
		codes := make([]string, 0, len(s.Counts))
		for code := range s.Counts {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		b.WriteString("\nPizzas sold\n")
		for _, code := range codes {
			fmt.Fprintf(&b, "  %-22s %10d\n", code, s.Counts[code])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Orders writes one row per committed order.
func Orders(w io.Writer, orders []order.PlacedOrder) error {
	if len(orders) == 0 {
		_, err := io.WriteString(w, "No orders yet.\n")
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-19s %5s %10s %9s %9s\n", "ID", "PLACED (UTC)", "ITEMS", "SUBTOTAL", "GST", "TOTAL")
	for _, o := range orders {
		fmt.Fprintf(&b, "%-4d %-19s %5d %10s %9s %9s\n",
			o.ID,
			o.Timestamp.UTC().Format(timestampLayout),
			o.PizzaCount(),
			Money(o.Subtotal),
			Money(o.GST),
			Money(o.Total),
		)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Daily writes one row per UTC date.
func Daily(w io.Writer, days []order.DailySummary) error {
	if len(days) == 0 {
		_, err := io.WriteString(w, "No orders yet.\n")
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %6s %12s %10s %12s\n", "DATE", "PIZZAS", "INC GST", "GST", "EX GST")
	for _, d := range days {
		fmt.Fprintf(&b, "%-10s %6d %12s %10s %12s\n",
			d.Date, d.PizzasSold, Money(d.RevenueIncGST), Money(d.GST), Money(d.RevenueExGST))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
