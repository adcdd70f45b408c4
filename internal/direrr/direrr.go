// Package direrr defines the error-kind taxonomy shared across the directory
// engine. Every kind is a sentinel that Kind and Wrap attach context to
// through an error type whose Is method matches the sentinel, so callers
// compare with errors.Is(err, direrr.ErrXxx) rather than type assertions.
package direrr

import (
	"errors"
	"fmt"
)

// Kinds from the LDAP wire layer.
var (
	ErrBindFailed  = errors.New("LDAP_BIND_FAILED")
	ErrIOFailed    = errors.New("LDAP_IO_FAILED")
	ErrNotFound    = errors.New("LDAP_NOT_FOUND")
	ErrConstraint  = errors.New("LDAP_CONSTRAINT")
)

// Kinds from schema validation.
var (
	ErrUnknownAttr     = errors.New("SCHEMA_UNKNOWN_ATTR")
	ErrRequiredMissing = errors.New("SCHEMA_REQUIRED_MISSING")
	ErrTestFailed      = errors.New("SCHEMA_TEST_FAILED")
	ErrFixedMismatch   = errors.New("FIXED_MISMATCH")
	ErrFixedImmutable  = errors.New("FIXED_IMMUTABLE")
	ErrPointerDangling = errors.New("POINTER_DANGLING")
	ErrPointerOutOfBranch = errors.New("POINTER_OUT_OF_BRANCH")
)

// Kinds from organization consistency.
var (
	ErrOrgNotEmpty      = errors.New("ORG_NOT_EMPTY")
	ErrOrgLinkImmutable = errors.New("ORG_LINK_IMMUTABLE")
	ErrOrgPathImmutable = errors.New("ORG_PATH_IMMUTABLE")
)

// Kinds from authorization.
var ErrPermissionDenied = errors.New("PERMISSION_DENIED")

// Kinds from the hook pipeline.
var ErrHookRejected = errors.New("HOOK_REJECTED")

// Kinds from trash.
var ErrTrashMoveFailed = errors.New("TRASH_MOVE_FAILED")

// Kinds from configuration.
var ErrConfigInvalid = errors.New("CONFIG_INVALID")

// Kind wraps a sentinel error with additional human-readable context while
// keeping errors.Is(err, sentinel) working.
func Kind(sentinel error, format string, args ...any) error {
	return &kindError{sentinel: sentinel, msg: sprintf(format, args...)}
}

// Wrap is Kind plus a preserved cause, for the rare case a caller needs to
// classify the original error later (e.g. mapping a hook rejection back to
// the HTTP status its underlying cause would have gotten on its own).
// errors.Is(err, sentinel) still reports true; errors.Unwrap(err) yields
// cause, not sentinel.
func Wrap(sentinel, cause error, format string, args ...any) error {
	return &kindError{sentinel: sentinel, msg: sprintf(format, args...), cause: cause}
}

type kindError struct {
	sentinel error
	msg      string
	cause    error
}

func (e *kindError) Error() string { return e.sentinel.Error() + ": " + e.msg }

// Is reports a match against this error's sentinel regardless of whether
// cause is set, so errors.Is(err, sentinel) keeps working even though
// Unwrap may return cause instead.
func (e *kindError) Is(target error) bool { return target == e.sentinel }

// Unwrap yields cause when set (Wrap), so callers that need the original
// error back can recover it; plain Kind errors have no further chain.
func (e *kindError) Unwrap() error { return e.cause }

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}

	return fmt.Sprintf(format, args...)
}
