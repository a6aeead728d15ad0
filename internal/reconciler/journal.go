package reconciler

import "sync"

// Outcome values recorded in the journal.
const (
	OutcomeSent      = "sent"      // request dispatched
	OutcomeApplied   = "applied"   // response became the cart state
	OutcomeDiscarded = "discarded" // response superseded by a newer request
	OutcomeFailed    = "failed"    // request failed, cart state restored if latest
	OutcomeRejected  = "rejected"  // operation refused, nothing sent
	OutcomeConfirmed = "confirmed" // order committed
)

// TraceEntry is one journal line.
type TraceEntry struct {
	Seq     int64       `json:"seq"`
	Kind    RequestKind `json:"kind"`
	ItemID  string      `json:"item_id,omitempty"`
	Qty     int         `json:"qty,omitempty"`
	Outcome string      `json:"outcome"`
	Message string      `json:"message,omitempty"`
}

// Journal is the append-only trace of a cart session. It is written by the
// loop and may be read from any goroutine.
type Journal struct {
	mu      sync.Mutex
	session string
	entries []TraceEntry
}

func newJournal(session string) *Journal {
	return &Journal{session: session}
}

// Session returns the session id.
func (j *Journal) Session() string {
	return j.session
}

func (j *Journal) record(e TraceEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

// Entries returns a copy of the trace.
func (j *Journal) Entries() []TraceEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]TraceEntry(nil), j.entries...)
}
