// Package errs classifies the four error kinds the core distinguishes:
// NotFound, Validation, Contract, and Database. None are retried internally;
// callers (API layer, simulator) decide retry policy.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies which of the four error classes an error belongs to.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindContract   Kind = "contract"
	KindDatabase   Kind = "database"
)

// Error is a classified core error. It wraps an underlying cause so callers
// can still unwrap to inspect it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NotFound builds a NotFound error for a missing row (wallet, asset, loan,
// listing, …).
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a Validation error for a violated input constraint.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Contract wraps a ContractExecutor failure or unexpected output variant.
func Contract(cause error, format string, args ...any) error {
	return &Error{Kind: KindContract, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Database wraps a store acquisition or query failure.
func Database(cause error, format string, args ...any) error {
	return &Error{Kind: KindDatabase, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a classified *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
