package orderservice

import (
	"fmt"
	"strings"
	"sync"
)

// Op names a service operation that can be made to fail.
type Op string

const (
	OpMenu   Op = "menu"
	OpFetch  Op = "fetch"
	OpUpsert Op = "upsert"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
	OpCommit Op = "commit"
)

var knownOps = map[Op]bool{
	OpMenu: true, OpFetch: true, OpUpsert: true,
	OpRemove: true, OpClear: true, OpCommit: true,
}

// FaultError is an injected failure.
type FaultError struct {
	Op      Op
	Message string
}

func (e *FaultError) Error() string {
	return e.Message
}

// Faults holds one-shot failures per operation. Each injected fault is
// consumed by the next call of that operation; several faults for the same
// operation fire in injection order.
type Faults struct {
	mu      sync.Mutex
	pending map[Op][]string
}

// NewFaults creates an empty fault profile.
func NewFaults() *Faults {
	return &Faults{pending: make(map[Op][]string)}
}

// Inject queues a failure with message for the next call of op.
func (f *Faults) Inject(op Op, message string) error {
	if !knownOps[op] {
		return fmt.Errorf("unknown fault operation %q", op)
	}
	if message == "" {
		message = "injected failure"
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[op] = append(f.pending[op], message)
	return nil
}

// Pending returns the number of unconsumed faults for op.
func (f *Faults) Pending(op Op) int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending[op])
}

// take consumes the next fault for op, if any.
func (f *Faults) take(op Op) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.pending[op]
	if len(queue) == 0 {
		return nil
	}
	msg := queue[0]
	if len(queue) == 1 {
		delete(f.pending, op)
	} else {
		f.pending[op] = queue[1:]
	}
	return &FaultError{Op: op, Message: msg}
}

// ParseFault parses "op=message" as given to the --fault flag. The message
// may be omitted: "commit".
func ParseFault(s string) (Op, string, error) {
	name, msg, _ := strings.Cut(s, "=")
	op := Op(strings.TrimSpace(name))
	if !knownOps[op] {
		return "", "", fmt.Errorf("fault %q: unknown operation %q", s, op)
	}
	return op, strings.TrimSpace(msg), nil
}
