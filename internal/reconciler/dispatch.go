package reconciler

import (
	"sync"

	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
)

// RequestKind names an outgoing request.
type RequestKind string

const (
	KindMount  RequestKind = "mount"
	KindFetch  RequestKind = "fetch"
	KindUpsert RequestKind = "upsert"
	KindRemove RequestKind = "remove"
	KindCommit RequestKind = "commit"
)

// Request describes one outgoing call.
type Request struct {
	Seq    int64       `json:"seq"`
	Kind   RequestKind `json:"kind"`
	ItemID string      `json:"item_id,omitempty"`
	Qty    int         `json:"qty,omitempty"`
}

// Response is the outcome of a Request, delivered back to the loop.
type Response struct {
	Request

	Order        order.Order
	Confirmation order.Confirmation

	// Menu and MenuErr are set for KindMount only.
	Menu    *catalog.Catalog
	MenuErr error

	Err error
}

// Dispatcher runs request calls off the loop. run performs the call and
// enqueues the response; it must be invoked exactly once.
type Dispatcher interface {
	Dispatch(req Request, run func())
}

// goDispatcher runs every call on its own goroutine.
type goDispatcher struct {
	wg sync.WaitGroup
}

func (d *goDispatcher) Dispatch(_ Request, run func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		run()
	}()
}

// Wait blocks until every dispatched call has returned.
func (d *goDispatcher) Wait() {
	d.wg.Wait()
}

type heldCall struct {
	req Request
	run func()
}

// ManualDispatcher holds calls until the test resolves them, which makes
// response ordering explicit. Resolving a call performs it synchronously on
// the resolving goroutine; the response is then queued for the next Drain.
type ManualDispatcher struct {
	mu    sync.Mutex
	calls []heldCall
}

// NewManualDispatcher creates an empty ManualDispatcher.
func NewManualDispatcher() *ManualDispatcher {
	return &ManualDispatcher{}
}

// Dispatch holds the call.
func (d *ManualDispatcher) Dispatch(req Request, run func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, heldCall{req: req, run: run})
}

// Pending returns the held requests, oldest first.
func (d *ManualDispatcher) Pending() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.req)
	}
	return out
}

// Resolve performs the held call with the given sequence number.
// Returns false if no such call is held.
func (d *ManualDispatcher) Resolve(seq int64) bool {
	d.mu.Lock()
	idx := -1
	for i, c := range d.calls {
		if c.req.Seq == seq {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return false
	}
	call := d.calls[idx]
	d.calls = append(d.calls[:idx], d.calls[idx+1:]...)
	d.mu.Unlock()

	call.run()
	return true
}

// ResolveNext performs the oldest held call.
func (d *ManualDispatcher) ResolveNext() bool {
	d.mu.Lock()
	if len(d.calls) == 0 {
		d.mu.Unlock()
		return false
	}
	seq := d.calls[0].req.Seq
	d.mu.Unlock()
	return d.Resolve(seq)
}

// ResolveLast performs the newest held call.
func (d *ManualDispatcher) ResolveLast() bool {
	d.mu.Lock()
	if len(d.calls) == 0 {
		d.mu.Unlock()
		return false
	}
	seq := d.calls[len(d.calls)-1].req.Seq
	d.mu.Unlock()
	return d.Resolve(seq)
}

// ResolveAll performs every held call in dispatch order and returns how many
// ran.
func (d *ManualDispatcher) ResolveAll() int {
	n := 0
	for d.ResolveNext() {
		n++
	}
	return n
}
