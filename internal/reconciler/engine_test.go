package reconciler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/order"
)

// manualEngine builds an engine driven by Drain and a ManualDispatcher.
func manualEngine(t *testing.T, svc *fakeService, opts ...Option) (*Engine, *ManualDispatcher, *noticeLog) {
	t.Helper()
	d := NewManualDispatcher()
	notices := &noticeLog{}
	opts = append([]Option{
		WithDispatcher(d),
		WithNotifier(notices),
		WithSessionGenerator(NewFixedGenerator("session-1")),
	}, opts...)
	return New(svc, opts...), d, notices
}

// settle resolves and drains until nothing is held or queued.
func settle(e *Engine, d *ManualDispatcher) {
	ctx := context.Background()
	e.Drain(ctx)
	for d.ResolveAll() > 0 {
		e.Drain(ctx)
	}
}

func TestApplyDelta_OptimisticThenConfirmed(t *testing.T) {
	svc := newFakeService()
	svc.adjust = func(o order.Order) order.Order {
		o.GST = decimal.RequireFromString("1.14")
		o.Total = decimal.RequireFromString("13.64")
		return o
	}
	e, d, _ := manualEngine(t, svc)
	ctx := context.Background()

	require.NoError(t, e.ApplyDelta("margherita", 1))
	e.Drain(ctx)

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Quantity("margherita"), "applied before the response")
	assert.True(t, snap.Stale())

	pending := d.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, Request{Seq: 1, Kind: KindUpsert, ItemID: "margherita", Qty: 1}, pending[0])

	d.ResolveAll()
	e.Drain(ctx)

	snap = e.Snapshot()
	assert.False(t, snap.Stale())
	assert.Equal(t, 1, snap.Quantity("margherita"))
	assert.Equal(t, "12.50", snap.Subtotal().StringFixed(2))
	assert.Equal(t, "13.64", snap.Total().StringFixed(2))
	assert.Equal(t, int64(0), e.Pending())
}

func TestApplyDelta_ClampAtZeroSendsRemove(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)

	require.NoError(t, e.ApplyDelta("margherita", -1))
	e.Drain(context.Background())

	assert.Equal(t, 0, e.Snapshot().Quantity("margherita"))
	pending := d.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, KindRemove, pending[0].Kind, "exactly one request even when clamped")

	settle(e, d)
	assert.False(t, e.Snapshot().HasVisibleItems())
}

func TestApplyDelta_ClampAtNine(t *testing.T) {
	svc := newFakeService()
	svc.seed("pepperoni", 9)
	e, d, _ := manualEngine(t, svc)
	require.NoError(t, e.Mount())
	settle(e, d)
	require.Equal(t, 9, e.Snapshot().Quantity("pepperoni"))

	require.NoError(t, e.ApplyDelta("pepperoni", 1))
	e.Drain(context.Background())

	assert.Equal(t, 9, e.Snapshot().Quantity("pepperoni"))
	pending := d.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, KindUpsert, pending[0].Kind)
	assert.Equal(t, 9, pending[0].Qty)
}

func TestApplyDelta_RemoveLastItemEmptiesCart(t *testing.T) {
	svc := newFakeService()
	svc.seed("margherita", 1)
	e, d, _ := manualEngine(t, svc)
	require.NoError(t, e.Mount())
	settle(e, d)
	require.True(t, e.Snapshot().HasVisibleItems())

	require.NoError(t, e.ApplyDelta("margherita", -1))
	e.Drain(context.Background())
	assert.False(t, e.Snapshot().HasVisibleItems(), "hidden immediately")
	assert.Equal(t, KindRemove, d.Pending()[0].Kind)

	settle(e, d)
	snap := e.Snapshot()
	assert.Equal(t, 0, snap.Len())
	assert.True(t, snap.Total().IsZero())
	assert.Equal(t, 0, svc.serverQty("margherita"))
}

func TestApplyDelta_FailureRestoresAndRefetches(t *testing.T) {
	svc := newFakeService()
	svc.seed("margherita", 2)
	e, d, notices := manualEngine(t, svc)
	ctx := context.Background()
	require.NoError(t, e.Mount())
	settle(e, d)

	svc.failNext(KindUpsert, order.NewAPIError("upsert item", 409, "out of stock"))
	require.NoError(t, e.ApplyDelta("margherita", 1))
	e.Drain(ctx)
	assert.Equal(t, 3, e.Snapshot().Quantity("margherita"))

	d.ResolveAll()
	e.Drain(ctx)

	got := notices.all()
	require.Len(t, got, 1)
	assert.Equal(t, NoticeError, got[0].Kind)
	assert.Equal(t, "out of stock", got[0].Message)
	assert.Equal(t, "margherita", got[0].ItemID)
	assert.Equal(t, 2, e.Snapshot().Quantity("margherita"), "last authoritative state restored")

	pending := d.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, KindFetch, pending[0].Kind, "refetch follows a failed update")

	settle(e, d)
	assert.Equal(t, 2, e.Snapshot().Quantity("margherita"))
	assert.False(t, e.Snapshot().Stale())
	assert.Equal(t, 1, svc.callCount(KindUpsert), "no retry")
}

func TestApplyDelta_MalformedResponseIsFailure(t *testing.T) {
	svc := newFakeService()
	e, d, notices := manualEngine(t, svc)

	svc.failNext(KindUpsert, fmt.Errorf("upsert item: %w", order.ErrMalformedResponse))
	require.NoError(t, e.ApplyDelta("hawaiian", 1))
	settle(e, d)

	require.Len(t, notices.all(), 1)
	assert.ErrorIs(t, notices.all()[0].Err, order.ErrMalformedResponse)
	assert.Equal(t, 0, e.Snapshot().Quantity("hawaiian"))
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)
	ctx := context.Background()

	require.NoError(t, e.ApplyDelta("margherita", 1))
	require.NoError(t, e.ApplyDelta("margherita", 1))
	e.Drain(ctx)
	require.Len(t, d.Pending(), 2)
	assert.Equal(t, 2, e.Snapshot().Quantity("margherita"))

	// Newest first, then the older response arrives late.
	require.True(t, d.Resolve(2))
	e.Drain(ctx)
	assert.Equal(t, 2, e.Snapshot().Quantity("margherita"))

	require.True(t, d.Resolve(1))
	e.Drain(ctx)
	assert.Equal(t, 2, e.Snapshot().Quantity("margherita"), "older response never overwrites newer state")

	var outcomes []string
	for _, entry := range e.Trace() {
		if entry.Outcome != OutcomeSent {
			outcomes = append(outcomes, fmt.Sprintf("%d:%s", entry.Seq, entry.Outcome))
		}
	}
	assert.Equal(t, []string{"2:applied", "1:discarded"}, outcomes)
}

func TestStaleFailureNotifiesWithoutRollback(t *testing.T) {
	svc := newFakeService()
	e, d, notices := manualEngine(t, svc)
	ctx := context.Background()

	svc.failNext(KindUpsert, errors.New("connection reset"))
	require.NoError(t, e.ApplyDelta("margherita", 1))
	require.NoError(t, e.ApplyDelta("pepperoni", 1))
	e.Drain(ctx)

	require.True(t, d.Resolve(1))
	e.Drain(ctx)

	require.Len(t, notices.all(), 1)
	assert.Equal(t, "connection reset", notices.all()[0].Message)
	assert.Equal(t, 1, e.Snapshot().Quantity("pepperoni"), "newer optimistic state kept")
	require.Len(t, d.Pending(), 1, "no refetch for a superseded failure")
	assert.Equal(t, int64(2), d.Pending()[0].Seq)
}

func TestConvergesToLastAcknowledged(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)

	for _, delta := range []int{1, 1, 1, -1, 1} {
		require.NoError(t, e.ApplyDelta("hawaiian", delta))
		e.Drain(context.Background())
		d.ResolveAll()
	}
	settle(e, d)

	assert.Equal(t, 3, e.Snapshot().Quantity("hawaiian"))
	assert.Equal(t, svc.serverQty("hawaiian"), e.Snapshot().Quantity("hawaiian"))
}

func TestApplyDelta_Rejections(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)

	assert.ErrorIs(t, e.ApplyDelta("", 1), ErrInvalidItem)

	// No catalog yet: any id is accepted.
	require.NoError(t, e.ApplyDelta("calzone", 1))

	require.NoError(t, e.Mount())
	settle(e, d)

	err := e.ApplyDelta("calzone", 1)
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.True(t, IsRejection(err))
}

func TestSubmitOrder_EmptyCartSendsNothing(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)

	assert.ErrorIs(t, e.SubmitOrder(), ErrEmptyCart)
	e.Drain(context.Background())
	assert.Empty(t, d.Pending())
	assert.Equal(t, 0, svc.callCount(KindCommit))
}

func TestSubmitOrder_Confirmed(t *testing.T) {
	svc := newFakeService()
	e, d, notices := manualEngine(t, svc)
	require.NoError(t, e.ApplyDelta("margherita", 2))
	settle(e, d)

	require.NoError(t, e.SubmitOrder())
	assert.ErrorIs(t, e.SubmitOrder(), ErrSubmitInFlight)
	assert.True(t, e.Submitting())

	settle(e, d)

	assert.False(t, e.Submitting())
	assert.False(t, e.Snapshot().HasVisibleItems())
	got := notices.all()
	require.Len(t, got, 1)
	assert.Equal(t, NoticeConfirmed, got[0].Kind)
	assert.Equal(t, "1", got[0].OrderID)
	assert.Equal(t, 1, svc.callCount(KindCommit))
}

func TestSubmitOrder_FailureLeavesCart(t *testing.T) {
	svc := newFakeService()
	e, d, notices := manualEngine(t, svc)
	require.NoError(t, e.ApplyDelta("pepperoni", 1))
	settle(e, d)
	before := e.Snapshot()

	svc.failNext(KindCommit, order.NewAPIError("commit", 400, "order must contain at least one item"))
	require.NoError(t, e.SubmitOrder())
	settle(e, d)

	assert.True(t, before.Equal(e.Snapshot()))
	require.Len(t, notices.all(), 1)
	assert.Equal(t, "order must contain at least one item", notices.all()[0].Message)
	assert.False(t, e.Submitting(), "a new submission may be attempted")
}

func TestSubmitOrder_InFlightResponsesBelongToCommittedOrder(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)
	ctx := context.Background()

	require.NoError(t, e.ApplyDelta("margherita", 1))
	e.Drain(ctx)
	require.NoError(t, e.SubmitOrder())
	e.Drain(ctx)

	// Commit answers first; the earlier upsert response arrives afterwards.
	require.True(t, d.Resolve(2))
	e.Drain(ctx)
	require.True(t, d.Resolve(1))
	e.Drain(ctx)

	assert.False(t, e.Snapshot().HasVisibleItems(), "fresh cart after submission")
}

func TestSubmitOrder_RefusesDeltasUntilConfirmed(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)
	require.NoError(t, e.ApplyDelta("margherita", 1))
	settle(e, d)

	require.NoError(t, e.SubmitOrder())
	err := e.ApplyDelta("pepperoni", 1)
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.True(t, IsRejection(err))
	settle(e, d)

	assert.Equal(t, 1, svc.callCount(KindUpsert), "no upsert sent during the commit")
	assert.Equal(t, svc.serverQty("pepperoni"), e.Snapshot().Quantity("pepperoni"))
	assert.False(t, e.Snapshot().HasVisibleItems())

	require.NoError(t, e.ApplyDelta("pepperoni", 1), "accepted once the commit is confirmed")
	settle(e, d)
	assert.Equal(t, 1, svc.serverQty("pepperoni"))
	assert.Equal(t, 1, e.Snapshot().Quantity("pepperoni"))
}

func TestSubmitOrder_FetchAfterCommitResyncs(t *testing.T) {
	svc := newFakeService()
	e, d, _ := manualEngine(t, svc)
	ctx := context.Background()
	require.NoError(t, e.ApplyDelta("margherita", 1))
	settle(e, d)

	require.NoError(t, e.SubmitOrder())
	e.Drain(ctx)
	require.NoError(t, e.Refresh())
	e.Drain(ctx)

	// The refresh is answered before the server commits.
	require.True(t, d.Resolve(3))
	e.Drain(ctx)
	require.Equal(t, 1, e.Snapshot().Quantity("margherita"))
	require.True(t, d.Resolve(2))
	e.Drain(ctx)

	assert.False(t, e.Snapshot().HasVisibleItems())
	pending := d.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, Request{Seq: 4, Kind: KindFetch}, pending[0])

	settle(e, d)
	assert.Equal(t, 2, svc.callCount(KindFetch))
	assert.Equal(t, svc.serverQty("margherita"), e.Snapshot().Quantity("margherita"))
	assert.Equal(t, int64(0), e.Pending())
}

func TestMount_LoadsMenuAndOrder(t *testing.T) {
	svc := newFakeService()
	svc.seed("hawaiian", 2)
	e, d, _ := manualEngine(t, svc)

	require.NoError(t, e.Mount())
	settle(e, d)

	require.NotNil(t, e.Catalog())
	entries := e.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "margherita", entries[0].ID)
	assert.Equal(t, 0, entries[0].Quantity)
	assert.Equal(t, 2, entries[2].Quantity)
	assert.Equal(t, "session-1", e.Session())
}

func TestMount_MenuFailureStillLoadsOrder(t *testing.T) {
	svc := newFakeService()
	svc.seed("margherita", 1)
	svc.menuErr = errors.New("menu unavailable")
	e, d, notices := manualEngine(t, svc)

	require.NoError(t, e.Mount())
	settle(e, d)

	assert.Nil(t, e.Catalog())
	assert.Equal(t, 1, e.Snapshot().Quantity("margherita"))
	require.Len(t, notices.all(), 1)
	assert.Equal(t, KindMount, notices.all()[0].Request)
}

func TestRefresh_Idempotent(t *testing.T) {
	svc := newFakeService()
	svc.seed("pepperoni", 3)
	e, d, _ := manualEngine(t, svc)

	require.NoError(t, e.Refresh())
	settle(e, d)
	first := e.Snapshot()

	require.NoError(t, e.Refresh())
	settle(e, d)

	assert.True(t, first.Equal(e.Snapshot()))
}

func TestRefresh_FailureKeepsConfirmedState(t *testing.T) {
	svc := newFakeService()
	svc.seed("pepperoni", 3)
	e, d, notices := manualEngine(t, svc)
	require.NoError(t, e.Refresh())
	settle(e, d)

	svc.failNext(KindFetch, errors.New("timeout"))
	require.NoError(t, e.Refresh())
	settle(e, d)

	assert.Equal(t, 3, e.Snapshot().Quantity("pepperoni"))
	require.Len(t, notices.all(), 1)
	assert.Empty(t, d.Pending(), "failed fetch is not retried")
}

func TestObserverSeesEveryPublish(t *testing.T) {
	svc := newFakeService()
	var seen []int
	e, d, _ := manualEngine(t, svc, WithObserver(func(s cart.State) {
		seen = append(seen, s.Quantity("margherita"))
	}))

	require.NoError(t, e.ApplyDelta("margherita", 1))
	settle(e, d)

	assert.Equal(t, []int{1, 1}, seen, "optimistic publish then authoritative")
}

func TestRun_SettleAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newFakeService()
	notices := &noticeLog{}
	e := New(svc, WithNotifier(notices), WithSessionGenerator(NewFixedGenerator("run")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	settleCtx, settleCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer settleCancel()

	require.NoError(t, e.Mount())
	require.NoError(t, e.Settle(settleCtx))
	require.NoError(t, e.ApplyDelta("margherita", 1))
	require.NoError(t, e.Settle(settleCtx))
	require.NoError(t, e.ApplyDelta("pepperoni", 2))
	require.NoError(t, e.Settle(settleCtx))

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Quantity("margherita"))
	assert.Equal(t, 2, snap.Quantity("pepperoni"))
	assert.False(t, snap.Stale())

	require.NoError(t, e.SubmitOrder())
	require.NoError(t, e.Settle(settleCtx))
	assert.False(t, e.Snapshot().HasVisibleItems())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.ErrorIs(t, e.ApplyDelta("margherita", 1), ErrEngineStopped)
}

func TestStop_DrainsQueuedEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newFakeService()
	e := New(svc, WithSessionGenerator(NewFixedGenerator("stop")))

	require.NoError(t, e.Refresh())
	e.Stop()

	err := e.Run(context.Background())
	assert.NoError(t, err)
	assert.ErrorIs(t, e.Refresh(), ErrEngineStopped)
}
