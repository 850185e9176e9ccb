package tracker

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Show when the tracker has no issue with the
// requested id. It is wrapped in an OperationError so callers can match it
// with errors.Is.
var ErrNotFound = errors.New("issue not found")

// ConnectionError means the transport could not be reached: the socket is
// absent, the dial failed, the process could not be spawned, or a call
// timed out. This is the only error class that should trigger automatic
// reconnect or backoff.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("tracker unreachable at %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// OperationError means the backend received the request and rejected it.
// It is surfaced to the caller immediately and never retried automatically;
// the rejection may be a validation failure.
type OperationError struct {
	Op      string
	Message string
	// Err optionally carries a sentinel (e.g. ErrNotFound) for errors.Is.
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("tracker %s failed: %s", e.Op, e.Message)
}

func (e *OperationError) Unwrap() error { return e.Err }

// ProtocolError means the backend answered with something we could not
// parse. Treated like an OperationError for the immediate call, and as a
// health-degradation signal when repeated.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tracker %s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
