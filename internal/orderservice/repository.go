package orderservice

import (
	"context"

	"github.com/roach88/papapizza/internal/order"
)

// LineQty is a stored current-order line. Prices are not stored: the
// service prices lines from the menu on every read.
type LineQty struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

// Repository persists the current order and the committed orders.
//
// Implementations: MemoryRepository (tests, default), store.Store (SQLite),
// redisstore.Store (Redis).
type Repository interface {
	// CurrentItems returns the current order's lines in insertion order.
	CurrentItems(ctx context.Context) ([]LineQty, error)

	// SetItem sets qty for itemID, appending the line when new. qty > 0.
	SetItem(ctx context.Context, itemID string, qty int) error

	// RemoveItem deletes the line for itemID. Removing a missing line is not
	// an error.
	RemoveItem(ctx context.Context, itemID string) error

	// ClearCurrent deletes every current line.
	ClearCurrent(ctx context.Context) error

	// PlaceOrder stores p under the next order id and clears the current
	// order in the same step. p.ID is ignored.
	PlaceOrder(ctx context.Context, p order.PlacedOrder) (int64, error)

	// Orders returns every committed order, oldest first.
	Orders(ctx context.Context) ([]order.PlacedOrder, error)

	Ping(ctx context.Context) error
	Close() error
}
