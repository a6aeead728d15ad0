package order

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a response body is not valid JSON or
// lacks a field the caller depends on.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-success response from the order API.
type APIError struct {
	// Op is the operation that failed, e.g. "upsert item".
	Op string

	// Status is the HTTP status code.
	Status int

	// Message is the server's {"error"} text, or the status text when the
	// body carried none.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("order api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: order api: %d: %s", e.Op, e.Status, e.Message)
}

// NewAPIError builds an APIError, falling back to the status text when
// message is empty.
func NewAPIError(op string, status int, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = "request failed"
	}
	return &APIError{Op: op, Status: status, Message: message}
}

// UserMessage returns the text shown to the customer for err: the server's
// message for API errors, otherwise err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
