package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/papapizza/internal/orderservice"
	"github.com/roach88/papapizza/internal/orderservice/repotest"
)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRepositoryContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) orderservice.Repository {
		return createTestStore(t)
	})
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"current_items", "orders", "order_items"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"}, // NORMAL
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestMigration_AddsPlacedAtIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_orders_placed_at'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("index missing: %v", err)
	}
}

func TestMigration_UpgradesVersionZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v0.db")
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	if _, err := raw.Exec(schemaSQL); err != nil {
		t.Fatalf("create v0 schema: %v", err)
	}
	raw.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
	var name string
	if err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_orders_placed_at'",
	).Scan(&name); err != nil {
		t.Errorf("index missing after upgrade: %v", err)
	}
}

func TestSetItem_RejectsNonPositive(t *testing.T) {
	s := createTestStore(t)
	if err := s.SetItem(context.Background(), "margherita", 0); err == nil {
		t.Fatal("SetItem(qty=0) succeeded, want CHECK constraint failure")
	}
}

func TestOrders_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.SetItem(ctx, "pepperoni", 1); err != nil {
		t.Fatalf("SetItem() failed: %v", err)
	}
	if _, err := s.PlaceOrder(ctx, repotest.Placed(ts, "pepperoni", "PEP", "Pepperoni", "15.00", 1)); err != nil {
		t.Fatalf("PlaceOrder() failed: %v", err)
	}
	if err := s.SetItem(ctx, "margherita", 4); err != nil {
		t.Fatalf("SetItem() failed: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	orders, err := s.Orders(ctx)
	if err != nil {
		t.Fatalf("Orders() failed: %v", err)
	}
	if len(orders) != 1 || orders[0].Total.StringFixed(2) != "16.50" {
		t.Fatalf("orders after reopen = %+v, want one order totalling 16.50", orders)
	}

	lines, err := s.CurrentItems(ctx)
	if err != nil {
		t.Fatalf("CurrentItems() failed: %v", err)
	}
	if len(lines) != 1 || lines[0].ItemID != "margherita" || lines[0].Qty != 4 {
		t.Fatalf("current items after reopen = %+v", lines)
	}
}
