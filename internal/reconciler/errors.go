package reconciler

import "errors"

var (
	// ErrInvalidItem is returned by ApplyDelta for an empty item id.
	ErrInvalidItem = errors.New("invalid item id")

	// ErrUnknownItem is returned by ApplyDelta when a menu has been loaded
	// and the item is not on it.
	ErrUnknownItem = errors.New("item is not on the menu")

	// ErrEmptyCart is returned by SubmitOrder when no line has a positive
	// quantity. No request is sent.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrSubmitInFlight is returned by SubmitOrder and ApplyDelta while a
	// commit is pending.
	ErrSubmitInFlight = errors.New("order submission already in progress")

	// ErrEngineStopped is returned when an operation is attempted after the
	// engine has stopped.
	ErrEngineStopped = errors.New("engine stopped")
)
