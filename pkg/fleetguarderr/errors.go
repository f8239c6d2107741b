// Package fleetguarderr defines the closed error taxonomy shared by every
// fleetguard subsystem, so callers can branch on error kind instead of
// matching message strings.
package fleetguarderr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a failure. The set is closed and
// intentionally small: it mirrors the taxonomy a caller actually needs to
// branch on (retry vs. abort vs. alert), not an exhaustive list of causes.
type Kind string

const (
	Network           Kind = "network"
	Io                Kind = "io"
	Malformed         Kind = "malformed"
	ExpiredMetadata   Kind = "expired_metadata"
	VersionRegression Kind = "version_regression"
	UnknownTarget     Kind = "unknown_target"
	HashMismatch      Kind = "hash_mismatch"
	LengthMismatch    Kind = "length_mismatch"
	InvalidSignature  Kind = "invalid_signature"
	ThresholdNotMet   Kind = "threshold_not_met"
	UnknownAlgorithm  Kind = "unknown_algorithm"
	MalformedKey      Kind = "malformed_key"
	TamperSuspected   Kind = "tamper_suspected"
	StateConflict     Kind = "state_conflict"
	NotInitialized    Kind = "not_initialized"
	Cancelled         Kind = "cancelled"
)

// Error carries a Kind alongside the operation that failed and the
// underlying cause, so it composes with errors.Is/errors.As while still
// printing a readable message.
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

// Is allows errors.Is(err, fleetguarderr.Kind) style checks by comparing
// against a sentinel *Error whose Kind is set and whose Err is nil.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New builds an *Error for the given operation and kind, wrapping cause if
// one is available.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Of returns the Kind of err if it (or something it wraps) is a *Error,
// and ok=false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err's kind equals kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
