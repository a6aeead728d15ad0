package reconciler

import "sync"

// EventType distinguishes event kinds.
type EventType int

const (
	// EventDelta is a user quantity change.
	EventDelta EventType = iota + 1
	// EventSubmit is an order submission.
	EventSubmit
	// EventFetch asks for the authoritative order (and the menu on mount).
	EventFetch
	// EventResponse carries the result of a dispatched request.
	EventResponse
)

func (t EventType) String() string {
	switch t {
	case EventDelta:
		return "delta"
	case EventSubmit:
		return "submit"
	case EventFetch:
		return "fetch"
	case EventResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the loop.
type Event struct {
	Type EventType

	// ItemID and Delta are set for EventDelta.
	ItemID string
	Delta  int

	// Mount is set on EventFetch when the menu must be loaded as well.
	Mount bool

	// Response is set for EventResponse.
	Response *Response
}

// eventQueue is an unbounded, thread-safe FIFO.
//
// Enqueue is called from any goroutine (callers and dispatched requests);
// only the loop dequeues. The buffered signal channel lets the loop wait
// with a select alongside ctx.Done.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Returns false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events[0] = Event{} // release the Response for GC
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns the availability signal. It is closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further events and wakes the loop.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
