package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/papapizza/internal/order"
	"github.com/roach88/papapizza/internal/orderservice"
)

var _ orderservice.Repository = (*Store)(nil)

// CurrentItems returns the open order's lines in insertion order.
func (s *Store) CurrentItems(ctx context.Context) ([]orderservice.LineQty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, qty FROM current_items
		ORDER BY seq ASC, item_id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("query current items: %w", err)
	}
	defer rows.Close()

	lines := []orderservice.LineQty{}
	for rows.Next() {
		var l orderservice.LineQty
		if err := rows.Scan(&l.ItemID, &l.Qty); err != nil {
			return nil, fmt.Errorf("scan current item: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SetItem inserts or updates a line. An existing line keeps its position.
func (s *Store) SetItem(ctx context.Context, itemID string, qty int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO current_items (item_id, qty, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM current_items))
		ON CONFLICT(item_id) DO UPDATE SET qty = excluded.qty
	`, itemID, qty)
	if err != nil {
		return fmt.Errorf("set item %s: %w", itemID, err)
	}
	return nil
}

// RemoveItem deletes a line; a missing line is not an error.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM current_items WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("remove item %s: %w", itemID, err)
	}
	return nil
}

// ClearCurrent deletes every open line.
func (s *Store) ClearCurrent(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM current_items`); err != nil {
		return fmt.Errorf("clear current order: %w", err)
	}
	return nil
}

// PlaceOrder stores p and clears the open order in one transaction.
func (s *Store) PlaceOrder(ctx context.Context, p order.PlacedOrder) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (placed_at, subtotal, gst, total)
		VALUES (?, ?, ?, ?)
	`, p.Timestamp.UTC().Format(time.RFC3339Nano), p.Subtotal.String(), p.GST.String(), p.Total.String())
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("order id: %w", err)
	}

	for i, it := range p.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, item_id, code, name, qty, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, it.ID, it.Code, it.Name, it.Qty, it.UnitPrice.String(), it.LineTotal.String())
		if err != nil {
			return 0, fmt.Errorf("insert order item %s: %w", it.ID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM current_items`); err != nil {
		return 0, fmt.Errorf("clear current order: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit order: %w", err)
	}
	return id, nil
}

// Orders returns every committed order with its lines, oldest first.
func (s *Store) Orders(ctx context.Context) ([]order.PlacedOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, placed_at, subtotal, gst, total FROM orders
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := []order.PlacedOrder{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			p                    order.PlacedOrder
			placedAt             string
			subtotal, gst, total string
		)
		if err := rows.Scan(&p.ID, &placedAt, &subtotal, &gst, &total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if p.Timestamp, err = time.Parse(time.RFC3339Nano, placedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("order %d: placed_at: %w", p.ID, err)
		}
		if p.Subtotal, p.GST, p.Total, err = parseTotals(subtotal, gst, total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("order %d: %w", p.ID, err)
		}
		p.Items = []order.Item{}
		index[p.ID] = len(orders)
		orders = append(orders, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.loadItems(ctx, orders, index); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills in the lines of orders. The single connection means the
// orders cursor must be closed before this runs.
func (s *Store) loadItems(ctx context.Context, orders []order.PlacedOrder, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, item_id, code, name, qty, unit_price, line_total
		FROM order_items
		ORDER BY order_id ASC, position ASC
	`)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID         int64
			it              order.Item
			unit, lineTotal string
		)
		if err := rows.Scan(&orderID, &it.ID, &it.Code, &it.Name, &it.Qty, &unit, &lineTotal); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i, ok := index[orderID]
		if !ok {
			continue
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return fmt.Errorf("order %d item %s: unit_price: %w", orderID, it.ID, err)
		}
		if it.LineTotal, err = decimal.NewFromString(lineTotal); err != nil {
			return fmt.Errorf("order %d item %s: line_total: %w", orderID, it.ID, err)
		}
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func parseTotals(subtotal, gst, total string) (s, g, t decimal.Decimal, err error) {
	if s, err = decimal.NewFromString(subtotal); err != nil {
		return s, g, t, fmt.Errorf("subtotal: %w", err)
	}
	if g, err = decimal.NewFromString(gst); err != nil {
		return s, g, t, fmt.Errorf("gst: %w", err)
	}
	if t, err = decimal.NewFromString(total); err != nil {
		return s, g, t, fmt.Errorf("total: %w", err)
	}
	return s, g, t, nil
}
