package cashapi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed service call.
type ErrorKind string

const (
	// KindNetwork: the request never completed (dial, ctx, transport).
	KindNetwork ErrorKind = "network"
	// KindServer: the service answered with a non-2xx status.
	KindServer ErrorKind = "server"
	// KindMalformed: the body did not parse as the expected shape.
	KindMalformed ErrorKind = "malformed-response"
)

// ErrNotFound is reported when the service answers 404 for a row id.
var ErrNotFound = errors.New("row not found")

// Error is a classified service-boundary failure. A non-2xx status or an
// unparseable body is always reported as one of these, never coerced into an
// empty or zero result.
type Error struct {
	Kind   ErrorKind
	Op     string // e.g. "list rows", "pay credits"
	Status int    // HTTP status for KindServer, 0 otherwise
	Detail string // service-provided detail message, if any
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain; ok is false for
// errors that did not originate at the service boundary.
func KindOf(err error) (ErrorKind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
