package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal"
)

var (
	// ErrHandleClosed is returned by Push after the handle has been closed.
	ErrHandleClosed = errors.New("handle closed")
	// ErrHandleFull is returned by Push when the delivery buffer is full.
	// The dispatcher treats it the same as a dead connection.
	ErrHandleFull = errors.New("handle buffer full")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}
