// Package errs provides the unified error type used across the storage adapter.
//
// Every subsystem (settings, filestore, drivers) wraps its native errors
// into *errs.Error before returning them to callers. Callers use the Is*
// predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "put object timed out", sdkErr)
//
//	// In a caller, check the error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKind categorises an error without exposing backend-specific codes.
// All drivers (S3, MinIO, in-memory) map their native errors to one
// of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no object at the key
	ErrKindConnectionFailed         // cannot reach the object store
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindStorageFailed            // the store rejected or failed the operation
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConfiguration            // unknown or conflicting settings
	ErrKindInvalidPath              // path escapes the storage root
	ErrKindInvalidMode              // unsupported open mode
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindStorageFailed:
		return "storage_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindInvalidPath:
		return "invalid_path"
	case ErrKindInvalidMode:
		return "invalid_mode"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all subsystems.
// Op and Key are filled in by the adapter so a failure names the
// operation and the object it was working on.
type Error struct {
	Kind    ErrKind
	Op      string
	Key     string
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Kind)
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Key != "" {
			fmt.Fprintf(&b, " %q", e.Key)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// At annotates err with the operation and key that produced it.
// A plain error is wrapped as a storage failure; an *Error keeps its kind
// and only gains Op/Key when they are still empty.
func At(err error, op, key string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		annotated := *e
		if annotated.Op == "" {
			annotated.Op = op
		}
		if annotated.Key == "" {
			annotated.Key = key
		}
		return &annotated
	}
	return &Error{Kind: ErrKindStorageFailed, Op: op, Key: key, Message: "operation failed", Cause: err}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing object.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConfiguration reports whether err comes from invalid or conflicting settings.
func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

// IsInvalidPath reports whether err is a path that resolves outside the root.
func IsInvalidPath(err error) bool {
	return KindOf(err) == ErrKindInvalidPath
}

// IsInvalidMode reports whether err is an unsupported open mode.
func IsInvalidMode(err error) bool {
	return KindOf(err) == ErrKindInvalidMode
}

// IsStorage reports whether err is a transport or store-side failure:
// anything the remote service or the network produced, except a plain
// missing object.
func IsStorage(err error) bool {
	switch KindOf(err) {
	case ErrKindStorageFailed, ErrKindConnectionFailed, ErrKindTimeout, ErrKindPermissionDenied:
		return true
	}
	return false
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
