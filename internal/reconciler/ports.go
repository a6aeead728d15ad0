package reconciler

import (
	"context"

	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
)

// OrderService is the remote order API as seen by the reconciler.
// Implemented by client.Client (HTTP) and orderservice.Service (in process).
//
// Upsert and remove return the full order after the change.
type OrderService interface {
	FetchOrder(ctx context.Context) (order.Order, error)
	UpsertItem(ctx context.Context, itemID string, qty int) (order.Order, error)
	RemoveItem(ctx context.Context, itemID string) (order.Order, error)
	Commit(ctx context.Context) (order.Confirmation, error)
}

// MenuService supplies the catalog on mount.
type MenuService interface {
	FetchMenu(ctx context.Context) (*catalog.Catalog, error)
}
