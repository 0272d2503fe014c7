package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dshills/broadcaster/internal/event"
	"github.com/dshills/broadcaster/internal/mainloop"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// badRequest marks request validation failures.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func newBadRequest(msg string) error { return &badRequest{msg: msg} }

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: status})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, mainloop.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, mainloop.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, event.ErrDispatchInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
