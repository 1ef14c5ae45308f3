package domain

import (
	"errors"
	"fmt"
)

// Code is the semantic error vocabulary exposed to callers. Every failure
// that crosses the usecase boundary carries exactly one Code; raw driver
// errors never leak.
type Code string

const (
	CodeInvalidAmount          Code = "INVALID_AMOUNT"
	CodeUnknownAccount         Code = "UNKNOWN_ACCOUNT"
	CodeInsufficientFunds      Code = "INSUFFICIENT_FUNDS"
	CodeIdempotencyMismatch    Code = "IDEMPOTENCY_MISMATCH"
	CodeIdempotencyReplay      Code = "IDEMPOTENCY_REPLAY" // success variant, not a failure
	CodeDeadlockRetryExhausted Code = "DEADLOCK_RETRY_EXHAUSTED"
	CodeConnectionLost         Code = "CONNECTION_LOST"
	CodeDegradedMode           Code = "DEGRADED_MODE"
	CodeMigrationLocked        Code = "MIGRATION_LOCKED"
	CodeDuplicateKey           Code = "DUPLICATE_KEY"
)

// Error is a failure carrying a semantic code and a short human message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches domain errors by code, so errors.Is(err, ErrInsufficientFunds)
// keeps working on wrapped copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewError builds a coded error wrapping an optional cause.
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the semantic code from an error chain. Unclassified errors
// report CONNECTION_LOST, the classifier's default.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeConnectionLost
}

// Sentinels for the deterministic failures.
var (
	ErrInvalidAmount       = &Error{Code: CodeInvalidAmount, Message: "amount must be greater than zero"}
	ErrAccountNotFound     = &Error{Code: CodeUnknownAccount, Message: "account not found"}
	ErrInsufficientFunds   = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrIdempotencyMismatch = &Error{Code: CodeIdempotencyMismatch, Message: "idempotency key reused with a different payload"}
	ErrDegradedMode        = &Error{Code: CodeDegradedMode, Message: "store degraded, writes refused"}
)
