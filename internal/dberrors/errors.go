// Package dberrors classifies the error families the storage engine can
// return, per the error-handling design: NotFound, AlreadyExists, and
// InvalidArgument are returned quietly to the caller; StorageCorruption,
// IOFailure, and InvariantViolation abort the current operation and are
// surfaced, never silently repaired.
package dberrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the six error families.
type Kind int

const (
	KindNotFound Kind = iota
	KindAlreadyExists
	KindInvalidArgument
	KindStorageCorruption
	KindIOFailure
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindStorageCorruption:
		return "storage_corruption"
	case KindIOFailure:
		return "io_failure"
	case KindInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// Fatal reports whether Kind aborts the current operation (StorageCorruption,
// IOFailure, InvariantViolation) rather than being handed back to the caller.
func (k Kind) Fatal() bool {
	switch k {
	case KindStorageCorruption, KindIOFailure, KindInvariantViolation:
		return true
	default:
		return false
	}
}

// Error pairs a Kind with the operation that raised it and an optional
// underlying cause. Fatal kinds carry a stack trace via pkg/errors so a
// driver logging with "%+v" gets the call chain, not just a message.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a dberrors.Error. Fatal kinds get their cause wrapped with a
// stack trace; the quiet kinds (NotFound/AlreadyExists/InvalidArgument)
// usually carry a nil cause since the condition is the whole story.
func New(kind Kind, op string, cause error) *Error {
	if cause != nil && kind.Fatal() {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is a dberrors.Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
