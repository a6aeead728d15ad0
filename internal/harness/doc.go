// Package harness runs scripted cart scenarios against the reconciler.
//
// Each scenario drives a reconciler.Engine with a ManualDispatcher, so the
// order in which requests reach the order service and their responses reach
// the loop is spelled out step by step. The order service is the in-process
// development service over a memory repository, with one-shot faults.
//
// # Scenario Format
//
//	name: upsert_rejected
//	description: "A rejected upsert rolls back to the refetched value"
//	session: optional-session-id
//	seed:
//	  - {item: margherita, qty: 2}
//	steps:
//	  - mount: true
//	  - resolve: all
//	  - fault: {op: upsert, message: "out of stock"}
//	  - delta: {item: margherita, by: 1}
//	  - expect: {quantities: {margherita: 3}, stale: true}
//	  - resolve: all
//	  - submit: true
//	    error: "cart is empty"
//	assertions:
//	  - type: trace_contains
//	    request: upsert
//	    outcome: failed
//	  - type: final_state
//	    expect: {quantities: {margherita: 2}}
//
// Every step performs exactly one action and then drains the event queue.
// resolve takes all, next, last or a request sequence number; settle
// resolves until nothing is held.
//
// # Assertion Types
//
//   - trace_contains: a journal entry with the given request, outcome and item
//   - trace_order: "kind/outcome" pairs appear in this order
//   - trace_count: the number of entries with the given request and outcome
//   - final_state: the cart after the last step
//
// # Deterministic Testing
//
// Sequence numbers start at 1 for every run, the session id is derived from
// the scenario name, and the order service reads a testutil.DeterministicClock,
// so traces are byte-identical between runs and can be compared with golden
// files.
package harness
