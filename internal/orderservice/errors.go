package orderservice

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownItem is returned for an item id that is not on the menu.
	ErrUnknownItem = errors.New("unknown item")

	// ErrEmptyOrder is returned when committing an order with no items.
	ErrEmptyOrder = errors.New("order must contain at least one item")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}
