package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/orderservice"
	"github.com/roach88/papapizza/internal/reconciler"
	"github.com/roach88/papapizza/internal/testutil"
)

// clockStep is how far the order service clock moves per reading.
const clockStep = time.Minute

// run holds the wiring for one scenario execution.
type run struct {
	scenario   *Scenario
	engine     *reconciler.Engine
	dispatcher *reconciler.ManualDispatcher
	faults     *orderservice.Faults

	mu      sync.Mutex
	notices []reconciler.Notice
	errs    []string
}

// Run executes a scenario against a fresh in-memory order service.
// A non-nil error means the scenario could not be set up; step and
// assertion failures are reported in Result.Errors.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	session := s.Session
	if session == "" {
		session = testutil.SessionID(s.Name)
	}

	clock := testutil.NewDeterministicClock(time.Time{}, clockStep)
	faults := orderservice.NewFaults()
	svc := orderservice.New(
		orderservice.NewMemoryRepository(),
		catalog.DefaultMenu(),
		orderservice.WithFaults(faults),
		orderservice.WithClock(clock.Now),
	)
	for i, l := range s.Seed {
		if _, err := svc.UpsertItem(ctx, l.Item, l.Qty); err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
	}

	r := &run{
		scenario:   s,
		dispatcher: reconciler.NewManualDispatcher(),
		faults:     faults,
	}
	r.engine = reconciler.New(svc,
		reconciler.WithDispatcher(r.dispatcher),
		reconciler.WithNotifier(reconciler.NotifierFunc(r.notify)),
		reconciler.WithSessionGenerator(reconciler.NewFixedGenerator(session)),
	)

	slog.Debug("running scenario", "name", s.Name, "session", session, "steps", len(s.Steps))
	for i, step := range s.Steps {
		if err := r.step(ctx, step); err != nil {
			r.fail(fmt.Sprintf("steps[%d]: %v", i, err))
		}
		r.engine.Drain(ctx)
	}

	result := &Result{
		Scenario: s,
		Session:  r.engine.Session(),
		Trace:    r.engine.Trace(),
		Notices:  r.noticeList(),
		Final:    r.engine.Snapshot(),
	}
	for i, a := range s.Assertions {
		if err := checkAssertion(r, result, a); err != nil {
			r.fail(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	result.Errors = r.errs
	result.Pass = len(r.errs) == 0
	return result, nil
}

func (r *run) step(ctx context.Context, s Step) error {
	switch {
	case s.Mount:
		return r.engine.Mount()
	case s.Refresh:
		return r.engine.Refresh()
	case s.Delta != nil:
		return expectError(r.engine.ApplyDelta(s.Delta.Item, s.Delta.By), s.Error)
	case s.Submit:
		return expectError(r.engine.SubmitOrder(), s.Error)
	case s.Fault != nil:
		op, _, err := orderservice.ParseFault(s.Fault.Op)
		if err != nil {
			return err
		}
		return r.faults.Inject(op, s.Fault.Message)
	case s.Resolve != "":
		return r.resolve(s.Resolve)
	case s.Settle:
		r.settle(ctx)
		return nil
	case s.Expect != nil:
		return checkState(r, *s.Expect, "expect")
	}
	return errors.New("step has no action")
}

func (r *run) resolve(v string) error {
	which, err := parseResolve(v)
	if err != nil {
		return err
	}
	var ok bool
	switch which {
	case 0:
		r.dispatcher.ResolveAll()
		return nil
	case -1:
		ok = r.dispatcher.ResolveNext()
	case -2:
		ok = r.dispatcher.ResolveLast()
	default:
		ok = r.dispatcher.Resolve(which)
	}
	if !ok {
		return fmt.Errorf("resolve %s: no request held", v)
	}
	return nil
}

// settle resolves and drains until no request is held. Failed updates
// issue a follow-up fetch, so one pass is not always enough.
func (r *run) settle(ctx context.Context) {
	for len(r.dispatcher.Pending()) > 0 {
		r.dispatcher.ResolveAll()
		r.engine.Drain(ctx)
	}
}

func (r *run) notify(n reconciler.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *run) noticeList() []reconciler.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reconciler.Notice{}, r.notices...)
}

func (r *run) fail(msg string) {
	slog.Debug("scenario failure", "name", r.scenario.Name, "error", msg)
	r.errs = append(r.errs, msg)
}

func expectError(err error, want string) error {
	switch {
	case want == "" && err != nil:
		return fmt.Errorf("unexpected error: %w", err)
	case want != "" && err == nil:
		return fmt.Errorf("expected error %q, got none", want)
	case want != "" && err.Error() != want:
		return fmt.Errorf("expected error %q, got %q", want, err.Error())
	}
	return nil
}
