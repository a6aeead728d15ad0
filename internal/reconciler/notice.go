package reconciler

import "github.com/roach88/papapizza/internal/cart"

// NoticeKind classifies a Notice.
type NoticeKind string

const (
	// NoticeError reports a failed request. Message is user-facing.
	NoticeError NoticeKind = "error"
	// NoticeRejected reports an operation refused before any request was sent.
	NoticeRejected NoticeKind = "rejected"
	// NoticeConfirmed reports a committed order. OrderID is set.
	NoticeConfirmed NoticeKind = "confirmed"
)

// Notice is a user-visible message emitted by the loop.
type Notice struct {
	Kind    NoticeKind  `json:"kind"`
	Message string      `json:"message"`
	Request RequestKind `json:"request,omitempty"`
	ItemID  string      `json:"item_id,omitempty"`
	OrderID string      `json:"order_id,omitempty"`
	Seq     int64       `json:"seq,omitempty"`
	Err     error       `json:"-"`
}

// Notifier receives notices on the loop goroutine. Implementations must not
// block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// Observer is called on the loop goroutine after every published state change.
type Observer func(cart.State)
