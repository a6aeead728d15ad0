// Package reconciler keeps a customer's cart consistent with the order
// service despite latency and failures.
//
// # Architecture
//
// The Engine is a single-writer event loop. User operations (ApplyDelta,
// SubmitOrder, Mount, Refresh) are enqueued as events; network calls run off
// the loop through a Dispatcher and their results come back as response
// events. Only the loop goroutine mutates cart state. Readers get immutable
// cart.State snapshots through Snapshot, an Observer callback, or Entries.
//
// # Reconciliation
//
// A quantity change is applied locally at once, then exactly one request is
// sent: an upsert when the new quantity is positive, a removal otherwise.
// Every outgoing request is stamped with the next value of a logical Clock.
// A response is applied only when its sequence number is the highest issued
// so far; older responses are discarded, so a slow reply can never overwrite
// a newer optimistic or authoritative state.
//
// On a failed update the customer is notified, the last authoritative state
// is restored and the full order is fetched again. There is no automatic
// retry. A failed commit leaves the cart untouched.
//
// # Determinism
//
// The Journal records every request and its outcome. With a ManualDispatcher
// and Drain, tests control exactly when each response arrives and can
// compare the resulting trace against a golden file.
package reconciler
