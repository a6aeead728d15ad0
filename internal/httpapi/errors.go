package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/papapizza/internal/orderservice"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	var verr *orderservice.ValidationError
	var ferr *orderservice.FaultError
	switch {
	case errors.As(err, &verr), errors.Is(err, orderservice.ErrEmptyOrder):
		return http.StatusBadRequest
	case errors.Is(err, orderservice.ErrUnknownItem):
		return http.StatusNotFound
	case errors.As(err, &ferr):
		if ferr.Op == orderservice.OpMenu || ferr.Op == orderservice.OpFetch {
			return http.StatusServiceUnavailable
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure reports err. Internal errors are logged and their detail is
// not sent to the client.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}
