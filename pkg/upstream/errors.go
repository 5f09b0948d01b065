package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks network errors, timeouts and 5xx authority
	// responses. Retryable; read paths recover into degraded mode.
	ErrUnavailable = errors.New("authority unavailable")

	// ErrRejected marks 4xx authority responses: the authority is up but
	// refused the request. Not retryable; read paths still recover into
	// degraded mode, but the operator signal is a contract problem rather
	// than an outage.
	ErrRejected = errors.New("authority rejected request")

	// ErrMalformed marks responses that arrived but could not be decoded.
	// Consumers treat it exactly like ErrUnavailable.
	ErrMalformed = errors.New("malformed authority response")

	// ErrInvalidInput marks requests rejected before any network call
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries the failed operation and classification for an authority call
type Error struct {
	Op     string
	Status int
	Kind   error // ErrUnavailable, ErrRejected or ErrMalformed
	cause  error
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil && e.Status > 0:
		return fmt.Sprintf("%s: %v (status %d): %v", e.Op, e.Kind, e.Status, e.cause)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.cause)
	case e.Status > 0:
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Kind, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func unavailable(op string, status int, cause error) *Error {
	return &Error{Op: op, Status: status, Kind: ErrUnavailable, cause: cause}
}

func rejected(op string, status int) *Error {
	return &Error{Op: op, Status: status, Kind: ErrRejected}
}

func malformed(op string, cause error) *Error {
	return &Error{Op: op, Kind: ErrMalformed, cause: cause}
}

// IsReadFailure reports whether err should trigger the degraded-mode and
// fallback paths: unreachable, rejected and undecodable all count.
func IsReadFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRejected) || errors.Is(err, ErrMalformed)
}
