// Package orderservice is the development order API: it prices the current
// order from the menu, commits orders and reports sales.
//
// Pricing follows the storefront backend:
//
//	unit_price = round(price)
//	line_total = round(unit_price × qty)
//	subtotal   = round(Σ line_total)
//	gst        = round(subtotal × rate)     rate defaults to 0.10
//	total      = round(subtotal + gst)
//
// where round is half-up to cents. Service satisfies the reconciler's
// OrderService and MenuService ports, so it can be driven in process as well
// as over HTTP through httpapi.
package orderservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
)

// DefaultGSTRate is the goods and services tax rate.
var DefaultGSTRate = decimal.RequireFromString("0.10")

const centPlaces = 2

// Service is the order API's behaviour, independent of transport.
type Service struct {
	mu     sync.Mutex // serialises read-modify-write on the repository
	repo   Repository
	menu   *catalog.Catalog
	rate   decimal.Decimal
	now    func() time.Time
	faults *Faults
}

// Option configures a Service.
type Option func(*Service)

// WithGSTRate overrides DefaultGSTRate.
func WithGSTRate(rate decimal.Decimal) Option {
	return func(s *Service) { s.rate = rate }
}

// WithClock sets the time source used to stamp committed orders.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFaults attaches a fault profile.
func WithFaults(f *Faults) Option {
	return func(s *Service) { s.faults = f }
}

// New creates a service over repo selling menu.
func New(repo Repository, menu *catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		menu:   menu,
		rate:   DefaultGSTRate,
		now:    time.Now,
		faults: NewFaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Menu returns the catalog.
func (s *Service) Menu() *catalog.Catalog {
	return s.menu
}

// Faults returns the fault profile.
func (s *Service) Faults() *Faults {
	return s.faults
}

// FetchMenu returns the catalog.
func (s *Service) FetchMenu(ctx context.Context) (*catalog.Catalog, error) {
	if err := s.faults.take(OpMenu); err != nil {
		return nil, err
	}
	return s.menu, nil
}

// FetchOrder returns the priced current order.
func (s *Service) FetchOrder(ctx context.Context) (order.Order, error) {
	if err := s.faults.take(OpFetch); err != nil {
		return order.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(ctx)
}

// UpsertItem sets the quantity of a menu item in the current order.
func (s *Service) UpsertItem(ctx context.Context, itemID string, qty int) (order.Order, error) {
	if err := s.faults.take(OpUpsert); err != nil {
		return order.Order{}, err
	}
	if qty < 1 || qty > cart.MaxQuantity {
		return order.Order{}, &ValidationError{
			Field:   "qty",
			Message: fmt.Sprintf("must be between 1 and %d", cart.MaxQuantity),
		}
	}
	item, ok := s.menu.Lookup(itemID)
	if !ok {
		return order.Order{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SetItem(ctx, item.ID, qty); err != nil {
		return order.Order{}, fmt.Errorf("set item %s: %w", item.ID, err)
	}
	return s.current(ctx)
}

// RemoveItem deletes an item from the current order. Removing an item that
// is not in the order succeeds.
func (s *Service) RemoveItem(ctx context.Context, itemID string) (order.Order, error) {
	if err := s.faults.take(OpRemove); err != nil {
		return order.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.RemoveItem(ctx, order.NormalizeID(itemID)); err != nil {
		return order.Order{}, fmt.Errorf("remove item %s: %w", itemID, err)
	}
	return s.current(ctx)
}

// ClearOrder empties the current order.
func (s *Service) ClearOrder(ctx context.Context) (order.Order, error) {
	if err := s.faults.take(OpClear); err != nil {
		return order.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.ClearCurrent(ctx); err != nil {
		return order.Order{}, fmt.Errorf("clear order: %w", err)
	}
	return order.Empty(), nil
}

// Commit places the current order and starts a new empty one.
func (s *Service) Commit(ctx context.Context) (order.Confirmation, error) {
	if err := s.faults.take(OpCommit); err != nil {
		return order.Confirmation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.current(ctx)
	if err != nil {
		return order.Confirmation{}, err
	}
	if len(o.Items) == 0 {
		return order.Confirmation{}, ErrEmptyOrder
	}

	id, err := s.repo.PlaceOrder(ctx, order.PlacedOrder{Timestamp: s.now().UTC(), Order: o})
	if err != nil {
		return order.Confirmation{}, fmt.Errorf("place order: %w", err)
	}
	slog.Info("order placed", "order_id", id, "items", len(o.Items), "total", o.Total.StringFixed(centPlaces))
	return order.Confirmation{OrderID: fmt.Sprint(id)}, nil
}

// Orders returns every committed order, oldest first.
func (s *Service) Orders(ctx context.Context) ([]order.PlacedOrder, error) {
	orders, err := s.repo.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Summary aggregates every committed order. GST is charged on the summed
// revenue ex GST rather than summed per order, so the two can differ by a
// cent from the orders list.
func (s *Service) Summary(ctx context.Context) (order.Summary, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return order.Summary{}, err
	}
	sum := order.Summary{Orders: len(orders), Counts: map[string]int{}}
	for _, o := range orders {
		sum.RevenueExGST = sum.RevenueExGST.Add(o.Subtotal)
		for _, it := range o.Items {
			key := it.Code
			if key == "" {
				key = it.ID
			}
			sum.Counts[key] += it.Qty
		}
	}
	sum.RevenueExGST = round(sum.RevenueExGST)
	sum.GST = round(sum.RevenueExGST.Mul(s.rate))
	sum.RevenueIncGST = round(sum.RevenueExGST.Add(sum.GST))
	return sum, nil
}

// DailySummary aggregates committed orders by UTC date, oldest first.
func (s *Service) DailySummary(ctx context.Context) ([]order.DailySummary, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	byDate := map[string]*order.DailySummary{}
	for _, o := range orders {
		date := o.Timestamp.UTC().Format(time.DateOnly)
		d, ok := byDate[date]
		if !ok {
			d = &order.DailySummary{Date: date}
			byDate[date] = d
		}
		d.RevenueIncGST = d.RevenueIncGST.Add(o.Total)
		d.GST = d.GST.Add(o.GST)
		d.RevenueExGST = d.RevenueExGST.Add(o.Subtotal)
		d.PizzasSold += o.PizzaCount()
	}

	out := make([]order.DailySummary, 0, len(byDate))
	for _, d := range byDate {
		d.RevenueIncGST = round(d.RevenueIncGST)
		d.GST = round(d.GST)
		d.RevenueExGST = round(d.RevenueExGST)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Health reports whether the repository is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// current prices the stored lines. Lines for items no longer on the menu are
// skipped. Callers hold s.mu.
func (s *Service) current(ctx context.Context) (order.Order, error) {
	lines, err := s.repo.CurrentItems(ctx)
	if err != nil {
		return order.Order{}, fmt.Errorf("load current order: %w", err)
	}
	return s.Price(lines), nil
}

// Price computes an order from stored lines.
func (s *Service) Price(lines []LineQty) order.Order {
	o := order.Order{Items: make([]order.Item, 0, len(lines))}
	subtotal := decimal.Zero
	for _, l := range lines {
		item, ok := s.menu.Lookup(l.ItemID)
		if !ok {
			slog.Warn("skipping line for item not on menu", "item_id", l.ItemID)
			continue
		}
		unit := round(item.Price)
		lineTotal := round(unit.Mul(decimal.NewFromInt(int64(l.Qty))))
		o.Items = append(o.Items, order.Item{
			ID:        item.ID,
			Code:      item.Code,
			Name:      item.Name,
			UnitPrice: unit,
			Qty:       l.Qty,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	o.Subtotal = round(subtotal)
	o.GST = round(o.Subtotal.Mul(s.rate))
	o.Total = round(o.Subtotal.Add(o.GST))
	return o
}

// round rounds half away from zero to cents; amounts are never negative, so
// this is half-up.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(centPlaces)
}
