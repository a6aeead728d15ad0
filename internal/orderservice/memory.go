package orderservice

import (
	"context"
	"sync"

	"github.com/roach88/papapizza/internal/order"
)

// MemoryRepository keeps everything in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	current []LineQty
	orders  []order.PlacedOrder
	nextID  int64
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

func (m *MemoryRepository) CurrentItems(ctx context.Context) ([]LineQty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LineQty{}, m.current...), nil
}

func (m *MemoryRepository) SetItem(ctx context.Context, itemID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.current {
		if m.current[i].ItemID == itemID {
			m.current[i].Qty = qty
			return nil
		}
	}
	m.current = append(m.current, LineQty{ItemID: itemID, Qty: qty})
	return nil
}

func (m *MemoryRepository) RemoveItem(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.current {
		if m.current[i].ItemID == itemID {
			m.current = append(m.current[:i], m.current[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryRepository) ClearCurrent(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

func (m *MemoryRepository) PlaceOrder(ctx context.Context, p order.PlacedOrder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	p.Items = append([]order.Item(nil), p.Items...)
	m.nextID++
	m.orders = append(m.orders, p)
	m.current = nil
	return p.ID, nil
}

func (m *MemoryRepository) Orders(ctx context.Context) ([]order.PlacedOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]order.PlacedOrder, len(m.orders))
	copy(out, m.orders)
	return out, nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error { return nil }

func (m *MemoryRepository) Close() error { return nil }
