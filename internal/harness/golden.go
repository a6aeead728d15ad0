package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/papapizza/internal/reconciler"
)

// Snapshot is the golden form of a Result.
type Snapshot struct {
	Scenario string                  `json:"scenario"`
	Session  string                  `json:"session"`
	Trace    []reconciler.TraceEntry `json:"trace"`
	Notices  []reconciler.Notice     `json:"notices"`
	Final    FinalSnapshot           `json:"final"`
}

// FinalSnapshot is the final cart with amounts fixed to cents.
type FinalSnapshot struct {
	Lines    []LineSnapshot `json:"lines"`
	Subtotal string         `json:"subtotal"`
	GST      string         `json:"gst"`
	Total    string         `json:"total"`
	Stale    bool           `json:"stale"`
}

// LineSnapshot is one visible cart line.
type LineSnapshot struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// Snapshot converts the result to its golden form.
func (r *Result) Snapshot() Snapshot {
	s := Snapshot{
		Scenario: r.Scenario.Name,
		Session:  r.Session,
		Trace:    r.Trace,
		Notices:  r.Notices,
		Final: FinalSnapshot{
			Lines:    []LineSnapshot{},
			Subtotal: r.Final.Subtotal().StringFixed(2),
			GST:      r.Final.Tax().StringFixed(2),
			Total:    r.Final.Total().StringFixed(2),
			Stale:    r.Final.Stale(),
		},
	}
	if s.Trace == nil {
		s.Trace = []reconciler.TraceEntry{}
	}
	if s.Notices == nil {
		s.Notices = []reconciler.Notice{}
	}
	for _, l := range r.Final.VisibleLines() {
		s.Final.Lines = append(s.Final.Lines, LineSnapshot{
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
		})
	}
	return s
}

// MarshalGolden returns the indented JSON of the result's snapshot.
func (r *Result) MarshalGolden() ([]byte, error) {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs the scenario, fails the test on any scenario error and
// compares the snapshot with testdata/golden/<name>.golden.
//
// Update golden files with: go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}
	for _, e := range result.Errors {
		t.Errorf("scenario %s: %s", s.Name, e)
	}
	AssertGolden(t, s.Name, result)
	return result
}

// AssertGolden compares result with the named golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := result.MarshalGolden()
	if err != nil {
		t.Fatalf("%v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
