// Package store is the SQLite repository for the development order service.
//
// Tables:
//   - current_items: the single open order, one row per item, ordered by seq
//   - orders: committed orders with their totals
//   - order_items: priced lines of committed orders
//
// Money is stored as decimal text so totals read back exactly as written.
// Committing an order inserts it and clears current_items in one
// transaction.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and write latency
//   - busy_timeout=5000: wait up to 5 seconds for locks
//   - foreign_keys=ON: order_items follow their order
//
// Schema changes are applied through PRAGMA user_version migrations.
package store
