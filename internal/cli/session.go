package cli

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/reconciler"
)

// cartSession is a mounted reconciler engine running its loop in the
// background. Close stops it.
type cartSession struct {
	engine *reconciler.Engine
	group  *errgroup.Group

	mu      sync.Mutex
	notices []reconciler.Notice
}

// openSession starts an engine over orders and waits for the mount to
// settle. A failed order fetch during mount is an error; a failed menu fetch
// is left for the caller to inspect.
func openSession(ctx context.Context, orders reconciler.OrderService) (*cartSession, error) {
	s := &cartSession{}
	s.engine = reconciler.New(orders, reconciler.WithNotifier(reconciler.NotifierFunc(s.notify)))

	s.group, ctx = errgroup.WithContext(ctx)
	s.group.Go(func() error {
		return s.engine.Run(ctx)
	})

	if err := s.engine.Mount(); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start cart session", err)
	}
	if err := s.engine.Settle(ctx); err != nil {
		s.Close()
		return nil, WrapExitError(ExitFailure, "cart session interrupted", err)
	}
	for _, t := range s.engine.Trace() {
		if t.Kind == reconciler.KindMount && t.Outcome == reconciler.OutcomeFailed {
			s.Close()
			return nil, NewExitError(ExitFailure, "could not load the current order: "+t.Message)
		}
	}
	return s, nil
}

// Close stops the loop and waits for in-flight requests.
func (s *cartSession) Close() error {
	s.engine.Stop()
	if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *cartSession) notify(n reconciler.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

// Notices returns every notice received so far.
func (s *cartSession) Notices() []reconciler.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reconciler.Notice(nil), s.notices...)
}

// failure returns an ExitError for the error notices received since mark,
// or nil. mark is a previous len(Notices()).
func (s *cartSession) failure(mark int, details any) error {
	var msgs []string
	for _, n := range s.Notices()[mark:] {
		if n.Kind == reconciler.NoticeError {
			msgs = append(msgs, n.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return &ExitError{
		Code:    ExitFailure,
		Message: strings.Join(msgs, "; "),
		ErrCode: CodeRequestFailed,
		Details: details,
	}
}

// cartView is the JSON form of a cart command's result.
type cartView struct {
	Cart    cart.State          `json:"cart"`
	Notices []reconciler.Notice `json:"notices,omitempty"`
}
