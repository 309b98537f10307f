// Package errs defines the closed error taxonomy for the circulation
// engine. Callers branch on Kind, never on reason strings.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown covers errors that did not originate in this package.
	KindUnknown Kind = iota
	// KindNotFound: a referenced book, user or loan does not exist.
	KindNotFound
	// KindPolicyViolation: loan-days or active-loan-count limits exceeded.
	KindPolicyViolation
	// KindConflict: book unavailable, loan already returned, fine
	// overpayment, duplicate unique key.
	KindConflict
	// KindStorage: unexpected persistence failure.
	KindStorage
	// KindUnauthorized: missing or invalid credential.
	KindUnauthorized
	// KindForbidden: credential valid but role insufficient.
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPolicyViolation:
		return "policy_violation"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage_failure"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with a human-readable reason. Business failures are
// expected outcomes and carry a precise reason the caller can surface.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func PolicyViolationf(format string, args ...interface{}) error {
	return &Error{Kind: KindPolicyViolation, Reason: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// Storage wraps an unexpected persistence error. The wrapped error is kept
// for logging; the reason shown to callers stays generic.
func Storage(reason string, err error) error {
	return &Error{Kind: KindStorage, Reason: reason, Err: err}
}

func Unauthorizedf(format string, args ...interface{}) error {
	return &Error{Kind: KindUnauthorized, Reason: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reason returns the caller-facing reason for err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
