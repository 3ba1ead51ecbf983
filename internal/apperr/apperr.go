// Package apperr implements the error-kind taxonomy used across the RPC
// and HTTP boundaries, adapted from the broader AppError convention used
// elsewhere in this codebase but narrowed to the kinds this service
// actually raises.
package apperr

import "fmt"

// Kind names one of the error kinds in the error-handling design.
type Kind string

const (
	KindBadRequest     Kind = "bad_request"
	KindMailboxClosed  Kind = "mailbox_closed"
	KindMailboxFull    Kind = "mailbox_full"
	KindSchemaConflict Kind = "schema_conflict"
	KindIOFatal        Kind = "io_fatal"
	KindIORetry        Kind = "io_retry"
	KindQueryPlan      Kind = "query_plan"
	KindNotFound       Kind = "not_found"
)

// Error is a typed error carrying the kind plus an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error carrying cause as the underlying error.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// as is a tiny errors.As shim kept local to avoid importing errors just
// for this one call site in callers that don't already.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
