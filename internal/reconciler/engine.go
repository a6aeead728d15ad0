package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/order"
)

// settlePoll is how often Settle re-checks the pending count.
const settlePoll = 2 * time.Millisecond

// Engine owns one cart session.
//
// Thread-safety model:
//   - ApplyDelta, SubmitOrder, Mount, Refresh, Snapshot, Entries, Trace:
//     safe from any goroutine
//   - Run or Drain: exactly one goroutine at a time, never both
//
// Loop-owned fields (state, confirmed, latest) are touched only while
// processing an event.
type Engine struct {
	orders     OrderService
	menu       MenuService
	clock      *Clock
	queue      *eventQueue
	dispatcher Dispatcher
	journal    *Journal
	notifier   Notifier
	observer   Observer

	state     cart.State
	confirmed cart.State
	latest    int64

	snapshot   atomic.Pointer[cart.State]
	catalog    atomic.Pointer[catalog.Catalog]
	submitting atomic.Bool
	pending    atomic.Int64
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	menu       MenuService
	clock      *Clock
	dispatcher Dispatcher
	notifier   Notifier
	observer   Observer
	sessions   SessionGenerator
}

// WithMenuService sets the menu source used by Mount. By default the order
// service is used when it also implements MenuService.
func WithMenuService(m MenuService) Option {
	return func(c *engineConfig) { c.menu = m }
}

// WithClock sets the sequence clock.
func WithClock(clock *Clock) Option {
	return func(c *engineConfig) { c.clock = clock }
}

// WithDispatcher replaces the default goroutine-per-request dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(c *engineConfig) { c.dispatcher = d }
}

// WithNotifier sets the receiver of user-visible notices.
func WithNotifier(n Notifier) Option {
	return func(c *engineConfig) { c.notifier = n }
}

// WithObserver sets a callback invoked after every state change.
func WithObserver(o Observer) Option {
	return func(c *engineConfig) { c.observer = o }
}

// WithSessionGenerator sets the generator of the session id.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(c *engineConfig) { c.sessions = g }
}

// New creates an engine for one cart session. The cart starts empty; call
// Mount to load the menu and the current order.
func New(orders OrderService, opts ...Option) *Engine {
	cfg := engineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.menu == nil {
		if m, ok := orders.(MenuService); ok {
			cfg.menu = m
		}
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}
	if cfg.dispatcher == nil {
		cfg.dispatcher = &goDispatcher{}
	}
	if cfg.sessions == nil {
		cfg.sessions = UUIDv7Generator{}
	}

	e := &Engine{
		orders:     orders,
		menu:       cfg.menu,
		clock:      cfg.clock,
		queue:      newEventQueue(),
		dispatcher: cfg.dispatcher,
		journal:    newJournal(cfg.sessions.Generate()),
		notifier:   cfg.notifier,
		observer:   cfg.observer,
		state:      cart.Empty(),
		confirmed:  cart.Empty(),
	}
	empty := cart.Empty()
	e.snapshot.Store(&empty)
	return e
}

// Session returns the session id.
func (e *Engine) Session() string {
	return e.journal.Session()
}

// Enqueue submits a raw event. Returns false once the engine has stopped.
func (e *Engine) Enqueue(ev Event) bool {
	e.pending.Add(1)
	if !e.queue.Enqueue(ev) {
		e.pending.Add(-1)
		return false
	}
	return true
}

// ApplyDelta changes the quantity of itemID by delta. The clamped quantity
// is applied locally before the request is sent. Deltas are refused while a
// commit is in flight.
func (e *Engine) ApplyDelta(itemID string, delta int) error {
	if itemID == "" {
		return ErrInvalidItem
	}
	if e.submitting.Load() {
		return ErrSubmitInFlight
	}
	itemID = order.NormalizeID(itemID)
	if c := e.catalog.Load(); c != nil && !c.Contains(itemID) {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if !e.Enqueue(Event{Type: EventDelta, ItemID: itemID, Delta: delta}) {
		return ErrEngineStopped
	}
	return nil
}

// SubmitOrder commits the current order. It is refused while another commit
// is in flight or when the cart has no visible items.
func (e *Engine) SubmitOrder() error {
	if !e.Snapshot().HasVisibleItems() {
		return ErrEmptyCart
	}
	if !e.submitting.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	if !e.Enqueue(Event{Type: EventSubmit}) {
		e.submitting.Store(false)
		return ErrEngineStopped
	}
	return nil
}

// Submitting reports whether a commit is in flight.
func (e *Engine) Submitting() bool {
	return e.submitting.Load()
}

// Mount loads the menu and the current order concurrently.
func (e *Engine) Mount() error {
	if !e.Enqueue(Event{Type: EventFetch, Mount: true}) {
		return ErrEngineStopped
	}
	return nil
}

// Refresh re-fetches the authoritative order.
func (e *Engine) Refresh() error {
	if !e.Enqueue(Event{Type: EventFetch}) {
		return ErrEngineStopped
	}
	return nil
}

// Snapshot returns the latest published cart state.
func (e *Engine) Snapshot() cart.State {
	return *e.snapshot.Load()
}

// Catalog returns the menu loaded by the last successful mount, or nil.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog.Load()
}

// Entries returns the menu merged with current cart quantities.
func (e *Engine) Entries() []catalog.Entry {
	return catalog.Merge(e.catalog.Load(), e.Snapshot())
}

// Trace returns the session journal.
func (e *Engine) Trace() []TraceEntry {
	return e.journal.Entries()
}

// Pending returns the number of queued events plus in-flight requests.
func (e *Engine) Pending() int64 {
	return e.pending.Load()
}

// Run starts the event loop and blocks until ctx is cancelled or Stop is
// called. In-flight requests are cancelled and waited for before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	slog.Debug("reconciler starting", "session", e.Session())

	reqCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		if w, ok := e.dispatcher.(interface{ Wait() }); ok {
			w.Wait()
		}
	}()

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.process(reqCtx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("reconciler stopping: context cancelled", "session", e.Session())
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Debug("reconciler stopping: queue closed", "session", e.Session())
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once queued events are processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Drain processes queued events on the calling goroutine until the queue is
// empty. It is the synchronous alternative to Run, used with a
// ManualDispatcher.
func (e *Engine) Drain(ctx context.Context) int {
	n := 0
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.process(ctx, ev)
		n++
	}
}

// Settle blocks until no events are queued and no requests are in flight.
func (e *Engine) Settle(ctx context.Context) error {
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()
	for e.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// process handles one event. Called only from the loop.
func (e *Engine) process(ctx context.Context, ev Event) {
	defer e.pending.Add(-1)

	switch ev.Type {
	case EventDelta:
		e.handleDelta(ctx, ev.ItemID, ev.Delta)
	case EventSubmit:
		e.handleSubmit(ctx)
	case EventFetch:
		e.fetch(ctx, ev.Mount)
	case EventResponse:
		if ev.Response == nil {
			slog.Error("response event missing response")
			return
		}
		e.handleResponse(ctx, ev.Response)
	default:
		slog.Error("unknown event type", "type", int(ev.Type))
	}
}

func (e *Engine) handleDelta(ctx context.Context, itemID string, delta int) {
	qty := cart.Next(e.state.Quantity(itemID), delta)
	e.publish(e.state.WithQuantity(itemID, qty))

	req := Request{Seq: e.clock.Next(), ItemID: itemID}
	e.latest = req.Seq
	if qty <= 0 {
		req.Kind = KindRemove
	} else {
		req.Kind = KindUpsert
		req.Qty = qty
	}
	e.dispatch(ctx, req)
}

func (e *Engine) handleSubmit(ctx context.Context) {
	if !e.state.HasVisibleItems() {
		e.submitting.Store(false)
		seq := e.clock.Current()
		e.journal.record(TraceEntry{Seq: seq, Kind: KindCommit, Outcome: OutcomeRejected, Message: ErrEmptyCart.Error()})
		e.notify(Notice{Kind: NoticeRejected, Request: KindCommit, Message: ErrEmptyCart.Error(), Err: ErrEmptyCart})
		return
	}
	// A commit does not become the latest request, so responses to earlier
	// requests still apply until it is confirmed.
	e.dispatch(ctx, Request{Seq: e.clock.Next(), Kind: KindCommit})
}

func (e *Engine) fetch(ctx context.Context, mount bool) {
	req := Request{Seq: e.clock.Next(), Kind: KindFetch}
	if mount {
		req.Kind = KindMount
	}
	e.latest = req.Seq
	e.dispatch(ctx, req)
}

// dispatch hands req to the dispatcher. The in-flight count covers the call
// until its response is queued.
func (e *Engine) dispatch(ctx context.Context, req Request) {
	slog.Debug("request sent", "seq", req.Seq, "kind", req.Kind, "item_id", req.ItemID, "qty", req.Qty)
	e.journal.record(TraceEntry{Seq: req.Seq, Kind: req.Kind, ItemID: req.ItemID, Qty: req.Qty, Outcome: OutcomeSent})

	e.pending.Add(1)
	e.dispatcher.Dispatch(req, func() {
		defer e.pending.Add(-1)
		resp := e.call(ctx, req)
		if !e.Enqueue(Event{Type: EventResponse, Response: &resp}) {
			slog.Debug("response dropped: engine stopped", "seq", req.Seq, "kind", req.Kind)
		}
	})
}

// call performs the remote operation for req. Runs off the loop.
func (e *Engine) call(ctx context.Context, req Request) Response {
	resp := Response{Request: req}
	switch req.Kind {
	case KindUpsert:
		resp.Order, resp.Err = e.orders.UpsertItem(ctx, req.ItemID, req.Qty)
	case KindRemove:
		resp.Order, resp.Err = e.orders.RemoveItem(ctx, req.ItemID)
	case KindFetch:
		resp.Order, resp.Err = e.orders.FetchOrder(ctx)
	case KindCommit:
		resp.Confirmation, resp.Err = e.orders.Commit(ctx)
	case KindMount:
		var g errgroup.Group
		if e.menu != nil {
			g.Go(func() error {
				resp.Menu, resp.MenuErr = e.menu.FetchMenu(ctx)
				return resp.MenuErr
			})
		}
		g.Go(func() error {
			resp.Order, resp.Err = e.orders.FetchOrder(ctx)
			return resp.Err
		})
		_ = g.Wait() // errors are kept per call on resp
	default:
		resp.Err = fmt.Errorf("unknown request kind %q", req.Kind)
	}
	return resp
}

func (e *Engine) handleResponse(ctx context.Context, resp *Response) {
	switch resp.Kind {
	case KindCommit:
		e.handleCommit(ctx, resp)
		return
	case KindMount:
		e.handleMenu(resp)
	}

	if resp.Err != nil {
		e.handleFailure(ctx, resp)
		return
	}

	if resp.Seq != e.latest {
		slog.Debug("response discarded", "seq", resp.Seq, "latest", e.latest, "kind", resp.Kind)
		e.record(resp, OutcomeDiscarded, "")
		return
	}

	next := cart.FromOrder(resp.Order)
	e.confirmed = next
	e.publish(next)
	e.record(resp, OutcomeApplied, "")
}

// handleMenu stores the catalog from a mount regardless of sequence: the
// menu is not cart state.
func (e *Engine) handleMenu(resp *Response) {
	if resp.MenuErr != nil {
		msg := order.UserMessage(resp.MenuErr)
		slog.Warn("menu fetch failed", "seq", resp.Seq, "error", resp.MenuErr)
		e.notify(Notice{Kind: NoticeError, Request: KindMount, Message: msg, Seq: resp.Seq, Err: resp.MenuErr})
		return
	}
	if resp.Menu != nil {
		e.catalog.Store(resp.Menu)
	}
}

// handleFailure surfaces a failed fetch or update. When the failed request
// was the latest, the last authoritative state is restored; a failed update
// additionally triggers a fresh fetch.
func (e *Engine) handleFailure(ctx context.Context, resp *Response) {
	msg := order.UserMessage(resp.Err)
	slog.Warn("request failed", "seq", resp.Seq, "kind", resp.Kind, "item_id", resp.ItemID, "error", resp.Err)
	e.record(resp, OutcomeFailed, msg)
	e.notify(Notice{
		Kind:    NoticeError,
		Request: resp.Kind,
		Message: msg,
		ItemID:  resp.ItemID,
		Seq:     resp.Seq,
		Err:     resp.Err,
	})

	if resp.Seq != e.latest {
		return
	}
	e.publish(e.confirmed)
	if resp.Kind == KindUpsert || resp.Kind == KindRemove {
		e.fetch(ctx, false)
	}
}

func (e *Engine) handleCommit(ctx context.Context, resp *Response) {
	e.submitting.Store(false)

	if resp.Err != nil {
		msg := order.UserMessage(resp.Err)
		slog.Warn("commit failed", "seq", resp.Seq, "error", resp.Err)
		e.record(resp, OutcomeFailed, msg)
		e.notify(Notice{Kind: NoticeError, Request: KindCommit, Message: msg, Seq: resp.Seq, Err: resp.Err})
		return
	}

	e.confirmed = cart.Empty()
	e.publish(cart.Empty())
	// Responses to requests issued before the commit describe the order
	// that was just committed. A request issued after it may have been
	// answered from either side of the commit, so the order is fetched again.
	resync := resp.Seq < e.latest
	if resp.Seq > e.latest {
		e.latest = resp.Seq
	}

	id := resp.Confirmation.OrderID
	slog.Info("order committed", "seq", resp.Seq, "order_id", id)
	e.record(resp, OutcomeConfirmed, id)
	e.notify(Notice{
		Kind:    NoticeConfirmed,
		Request: KindCommit,
		Message: fmt.Sprintf("Order #%s placed", id),
		OrderID: id,
		Seq:     resp.Seq,
	})
	if resync {
		e.fetch(ctx, false)
	}
}

func (e *Engine) record(resp *Response, outcome, message string) {
	e.journal.record(TraceEntry{
		Seq:     resp.Seq,
		Kind:    resp.Kind,
		ItemID:  resp.ItemID,
		Qty:     resp.Qty,
		Outcome: outcome,
		Message: message,
	})
}

func (e *Engine) publish(s cart.State) {
	e.state = s
	e.snapshot.Store(&s)
	if e.observer != nil {
		e.observer(s)
	}
}

func (e *Engine) notify(n Notice) {
	if e.notifier != nil {
		e.notifier.Notify(n)
	}
}

// IsRejection reports whether err is one of the errors returned before any
// request is sent.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidItem) ||
		errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrSubmitInFlight)
}
