package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies orchestration failures so the boundary layer can
// map them to HTTP semantics and the job manager can decide on retries.
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "invalid_input"
	ErrNotFound           ErrorKind = "not_found"
	ErrUnavailable        ErrorKind = "unavailable"
	ErrTransientNetwork   ErrorKind = "transient_network"
	ErrExpiredURL         ErrorKind = "expired_url"
	ErrNoFormats          ErrorKind = "no_formats"
	ErrFormatNotAvailable ErrorKind = "format_not_available"
	ErrMerge              ErrorKind = "merge_failed"
	ErrInsufficientSpace  ErrorKind = "insufficient_space"
	ErrAlreadyTerminal    ErrorKind = "already_terminal"
)

// Error is the error type produced by the orchestration core. Detail is
// human-readable and preserved all the way into the job snapshot.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Errorf creates a classified error with a formatted detail message
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a classification
func WrapError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the ErrorKind from anywhere in an error chain.
// Returns "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind checks whether an error carries the given classification
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether the failure class is worth retrying with
// backoff. All other classes surface immediately.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == ErrUnavailable || k == ErrTransientNetwork
}
