package harness

import (
	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/reconciler"
)

// Result contains the outcome of running a scenario.
type Result struct {
	// Scenario is the scenario that ran.
	Scenario *Scenario

	// Session is the session id of the engine.
	Session string

	// Pass is true when every step and assertion succeeded.
	Pass bool

	// Trace is the engine journal after the last step.
	Trace []reconciler.TraceEntry

	// Notices are the notices emitted by the engine, in order.
	Notices []reconciler.Notice

	// Final is the cart after the last step.
	Final cart.State

	// Errors holds step and assertion failures.
	Errors []string
}
