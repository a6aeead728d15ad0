// Package repotest checks an orderservice.Repository implementation against
// the behaviour the order service relies on.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/papapizza/internal/order"
	"github.com/roach88/papapizza/internal/orderservice"
)

// Run exercises a fresh repository returned by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) orderservice.Repository) {
	t.Helper()

	t.Run("empty", func(t *testing.T) {
		repo := open(t)
		lines, err := repo.CurrentItems(context.Background())
		require.NoError(t, err)
		assert.Empty(t, lines)

		orders, err := repo.Orders(context.Background())
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.NoError(t, repo.Ping(context.Background()))
	})

	t.Run("set keeps insertion order", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.SetItem(ctx, "pepperoni", 2))
		require.NoError(t, repo.SetItem(ctx, "margherita", 1))
		require.NoError(t, repo.SetItem(ctx, "pepperoni", 5))

		lines, err := repo.CurrentItems(ctx)
		require.NoError(t, err)
		assert.Equal(t, []orderservice.LineQty{
			{ItemID: "pepperoni", Qty: 5},
			{ItemID: "margherita", Qty: 1},
		}, lines)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.SetItem(ctx, "margherita", 1))
		require.NoError(t, repo.RemoveItem(ctx, "margherita"))
		require.NoError(t, repo.RemoveItem(ctx, "margherita"))
		require.NoError(t, repo.RemoveItem(ctx, "never-added"))

		lines, err := repo.CurrentItems(ctx)
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("clear", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.SetItem(ctx, "margherita", 1))
		require.NoError(t, repo.SetItem(ctx, "hawaiian", 3))
		require.NoError(t, repo.ClearCurrent(ctx))

		lines, err := repo.CurrentItems(ctx)
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("place order assigns ids and clears current", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.SetItem(ctx, "margherita", 2))

		ts := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
		first := Placed(ts, "margherita", "MAR", "Margherita", "12.50", 2)
		id1, err := repo.PlaceOrder(ctx, first)
		require.NoError(t, err)

		lines, err := repo.CurrentItems(ctx)
		require.NoError(t, err)
		assert.Empty(t, lines, "current order cleared on commit")

		id2, err := repo.PlaceOrder(ctx, Placed(ts.Add(time.Hour), "hawaiian", "HAW", "Hawaiian", "14.00", 1))
		require.NoError(t, err)
		assert.Greater(t, id2, id1)

		orders, err := repo.Orders(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 2)

		got := orders[0]
		assert.Equal(t, id1, got.ID)
		assert.True(t, got.Timestamp.Equal(ts))
		require.Len(t, got.Items, 1)
		assert.Equal(t, "margherita", got.Items[0].ID)
		assert.Equal(t, "MAR", got.Items[0].Code)
		assert.Equal(t, "Margherita", got.Items[0].Name)
		assert.Equal(t, 2, got.Items[0].Qty)
		assert.Equal(t, "12.50", got.Items[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "25.00", got.Items[0].LineTotal.StringFixed(2))
		assert.Equal(t, "25.00", got.Subtotal.StringFixed(2))
		assert.Equal(t, "2.50", got.GST.StringFixed(2))
		assert.Equal(t, "27.50", got.Total.StringFixed(2))
		assert.Equal(t, id2, orders[1].ID)
	})
}

// Placed builds a one-line committed order priced at 10% GST.
func Placed(ts time.Time, id, code, name, unitPrice string, qty int) order.PlacedOrder {
	unit := decimal.RequireFromString(unitPrice)
	line := unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	gst := line.Mul(decimal.RequireFromString("0.1")).Round(2)
	return order.PlacedOrder{
		Timestamp: ts,
		Order: order.Order{
			Items: []order.Item{{
				ID: id, Code: code, Name: name,
				UnitPrice: unit, Qty: qty, LineTotal: line,
			}},
			Subtotal: line,
			GST:      gst,
			Total:    line.Add(gst),
		},
	}
}
