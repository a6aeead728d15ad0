package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/reconciler"
)

// AssertionError describes a failed expectation with the trace that led to it.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []reconciler.TraceEntry
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed\n  expected: %s\n  actual:   %s", e.Type, e.Expected, e.Actual)
	if len(e.Trace) > 0 {
		b.WriteString("\n  trace:")
		for _, t := range e.Trace {
			fmt.Fprintf(&b, "\n    %s", formatEntry(t))
		}
	}
	return b.String()
}

func formatEntry(t reconciler.TraceEntry) string {
	s := fmt.Sprintf("%d %s", t.Seq, t.Kind)
	if t.ItemID != "" {
		s += " " + t.ItemID
	}
	if t.Qty != 0 {
		s += fmt.Sprintf(" %d", t.Qty)
	}
	s += " " + t.Outcome
	if t.Message != "" {
		s += fmt.Sprintf(" %q", t.Message)
	}
	return s
}

func checkAssertion(r *run, res *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(res.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(res.Trace, a.Sequence)
	case AssertTraceCount:
		return assertTraceCount(res.Trace, a)
	case AssertFinalState:
		return checkState(r, *a.Expect, AssertFinalState)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func matches(t reconciler.TraceEntry, request, outcome, item string) bool {
	if request != "" && string(t.Kind) != request {
		return false
	}
	if outcome != "" && t.Outcome != outcome {
		return false
	}
	return item == "" || t.ItemID == item
}

func assertTraceContains(trace []reconciler.TraceEntry, a Assertion) error {
	for _, t := range trace {
		if matches(t, a.Request, a.Outcome, a.Item) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a.Request, a.Outcome, a.Item),
		Actual:   "no matching entry",
		Trace:    trace,
	}
}

func assertTraceCount(trace []reconciler.TraceEntry, a Assertion) error {
	n := 0
	for _, t := range trace {
		if matches(t, a.Request, a.Outcome, a.Item) {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d × %s", a.Count, describe(a.Request, a.Outcome, a.Item)),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that each "kind/outcome" pair occurs after the
// previous one. Other entries may be interleaved.
func assertTraceOrder(trace []reconciler.TraceEntry, sequence []string) error {
	next := 0
	for _, t := range trace {
		if next == len(sequence) {
			break
		}
		kind, outcome, _ := strings.Cut(sequence[next], "/")
		if matches(t, kind, outcome, "") {
			next++
		}
	}
	if next < len(sequence) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: strings.Join(sequence, " → "),
			Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(sequence), sequence[next]),
			Trace:    trace,
		}
	}
	return nil
}

func describe(request, outcome, item string) string {
	s := request + "/" + outcome
	if item != "" {
		s += " " + item
	}
	return s
}

// checkState compares the engine's current state with exp. Every mismatch
// is reported, not only the first.
func checkState(r *run, exp StateExpect, kind string) error {
	s := r.engine.Snapshot()
	var diffs []string
	add := func(field string, want, got any) {
		diffs = append(diffs, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}

	if exp.Quantities != nil {
		if got := quantities(s); !equalQuantities(exp.Quantities, got) {
			add("quantities", formatQuantities(exp.Quantities), formatQuantities(got))
		}
	}
	if exp.Visible != nil && *exp.Visible != s.HasVisibleItems() {
		add("visible", *exp.Visible, s.HasVisibleItems())
	}
	if exp.Stale != nil && *exp.Stale != s.Stale() {
		add("stale", *exp.Stale, s.Stale())
	}
	if exp.Subtotal != "" && exp.Subtotal != s.Subtotal().StringFixed(2) {
		add("subtotal", exp.Subtotal, s.Subtotal().StringFixed(2))
	}
	if exp.GST != "" && exp.GST != s.Tax().StringFixed(2) {
		add("gst", exp.GST, s.Tax().StringFixed(2))
	}
	if exp.Total != "" && exp.Total != s.Total().StringFixed(2) {
		add("total", exp.Total, s.Total().StringFixed(2))
	}
	if exp.Pending != nil {
		if got := len(r.dispatcher.Pending()); got != *exp.Pending {
			add("pending", *exp.Pending, got)
		}
	}
	if exp.Submitting != nil && *exp.Submitting != r.engine.Submitting() {
		add("submitting", *exp.Submitting, r.engine.Submitting())
	}
	if exp.Notice != nil {
		if d := checkNotice(*exp.Notice, r.noticeList()); d != "" {
			diffs = append(diffs, d)
		}
	}

	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: "state to match",
		Actual:   strings.Join(diffs, "; "),
		Trace:    r.engine.Trace(),
	}
}

func checkNotice(exp NoticeExpect, notices []reconciler.Notice) string {
	if len(notices) == 0 {
		return fmt.Sprintf("notice: expected %s, got none", exp.Kind)
	}
	n := notices[len(notices)-1]
	switch {
	case string(n.Kind) != exp.Kind:
		return fmt.Sprintf("notice.kind: expected %s, got %s", exp.Kind, n.Kind)
	case exp.Message != "" && n.Message != exp.Message:
		return fmt.Sprintf("notice.message: expected %q, got %q", exp.Message, n.Message)
	case exp.OrderID != "" && n.OrderID != exp.OrderID:
		return fmt.Sprintf("notice.order_id: expected %s, got %s", exp.OrderID, n.OrderID)
	}
	return ""
}

// quantities returns the visible quantities of s.
func quantities(s cart.State) map[string]int {
	out := map[string]int{}
	for _, l := range s.VisibleLines() {
		out[l.ItemID] = l.Quantity
	}
	return out
}

func equalQuantities(want, got map[string]int) bool {
	n := 0
	for id, q := range want {
		if q == 0 {
			if _, ok := got[id]; ok {
				return false
			}
			continue
		}
		if got[id] != q {
			return false
		}
		n++
	}
	return n == len(got)
}

func formatQuantities(q map[string]int) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, q[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
