// Package domainerrors provides coded errors for the service layer.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing
// infrastructure facts; services translate them into coded errors from this
// package so transports can map outcomes without string matching. Import as:
//
//	dErrors "hackgate/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error. The string value doubles as the
// wire-level error code in HTTP responses.
type Code string

const (
	// Generic codes shared across modules.
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"

	// Lifecycle codes. Each maps to one business-rule violation so callers can
	// branch on the outcome rather than parse messages.
	CodeDuplicateMembership Code = "duplicate_membership"
	CodeTeamFull            Code = "team_full"
	CodeTokenAlreadyUsed    Code = "token_already_used"
	CodeTokenNotFound       Code = "token_not_found"
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeSelectionLocked     Code = "selection_locked"
	CodeNominationLocked    Code = "nomination_locked"
	CodeInvalidMemberCount  Code = "invalid_member_count"
	CodeInvalidDateSet      Code = "invalid_date_set"
	CodeContention          Code = "contention"
	CodeProvisioningFailed  Code = "provisioning_failed"
)

// Error is a coded domain error, optionally wrapping a cause.
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

// New constructs a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As inspection.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return New(code, message)
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost message, or empty when uncoded.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// Retryable reports whether the error represents transient contention that a
// caller may safely retry. All mutating operations re-read current state
// before acting, so retry is idempotent.
func Retryable(err error) bool {
	return HasCode(err, CodeContention) || HasCode(err, CodeTimeout)
}
