package reconciler

import (
	"context"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
)

// fakeService is an in-memory order API with one-shot failures.
type fakeService struct {
	mu       sync.Mutex
	menu     *catalog.Catalog
	lines    []order.Item
	failures map[RequestKind]error
	menuErr  error
	adjust   func(order.Order) order.Order
	commits  int
	calls    []RequestKind
}

func newFakeService() *fakeService {
	return &fakeService{
		menu: catalog.New([]catalog.Item{
			{ID: "margherita", Name: "Margherita", Price: decimal.RequireFromString("12.5")},
			{ID: "pepperoni", Name: "Pepperoni", Price: decimal.RequireFromString("15")},
			{ID: "hawaiian", Name: "Hawaiian", Price: decimal.RequireFromString("14")},
		}),
		failures: map[RequestKind]error{},
	}
}

// failNext makes the next call of kind fail with err.
func (f *fakeService) failNext(kind RequestKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[kind] = err
}

// seed sets a server-side quantity directly.
func (f *fakeService) seed(id string, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(id, qty)
}

func (f *fakeService) serverQty(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.lines {
		if it.ID == id {
			return it.Qty
		}
	}
	return 0
}

func (f *fakeService) callCount(kind RequestKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.calls {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeService) take(kind RequestKind) error {
	f.calls = append(f.calls, kind)
	err := f.failures[kind]
	delete(f.failures, kind)
	return err
}

func (f *fakeService) set(id string, qty int) {
	for i, it := range f.lines {
		if it.ID == id {
			if qty <= 0 {
				f.lines = append(f.lines[:i], f.lines[i+1:]...)
				return
			}
			f.lines[i].Qty = qty
			return
		}
	}
	if qty <= 0 {
		return
	}
	m, _ := f.menu.Lookup(id)
	f.lines = append(f.lines, order.Item{ID: id, Name: m.Name, UnitPrice: m.Price, Qty: qty})
}

func (f *fakeService) current() order.Order {
	o := order.Order{Items: make([]order.Item, 0, len(f.lines))}
	for _, it := range f.lines {
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty)))
		o.Items = append(o.Items, it)
		o.Subtotal = o.Subtotal.Add(it.LineTotal)
	}
	o.GST = o.Subtotal.Mul(decimal.RequireFromString("0.1")).Round(2)
	o.Total = o.Subtotal.Add(o.GST)
	if f.adjust != nil {
		o = f.adjust(o)
	}
	return o
}

func (f *fakeService) FetchMenu(ctx context.Context) (*catalog.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.menuErr; err != nil {
		f.menuErr = nil
		return nil, err
	}
	return f.menu, nil
}

func (f *fakeService) FetchOrder(ctx context.Context) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(KindFetch); err != nil {
		return order.Order{}, err
	}
	return f.current(), nil
}

func (f *fakeService) UpsertItem(ctx context.Context, itemID string, qty int) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(KindUpsert); err != nil {
		return order.Order{}, err
	}
	f.set(itemID, qty)
	return f.current(), nil
}

func (f *fakeService) RemoveItem(ctx context.Context, itemID string) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(KindRemove); err != nil {
		return order.Order{}, err
	}
	f.set(itemID, 0)
	return f.current(), nil
}

func (f *fakeService) Commit(ctx context.Context) (order.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(KindCommit); err != nil {
		return order.Confirmation{}, err
	}
	f.commits++
	f.lines = nil
	return order.Confirmation{OrderID: strconv.Itoa(f.commits)}, nil
}

// noticeLog collects notices.
type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) Notify(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) all() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Notice(nil), l.notices...)
}
