package vcs

import (
	"errors"
	"fmt"
)

// Code classifies engine failures. Every error returned by Engine operations
// carries exactly one of these.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodePolicyViolation     Code = "POLICY_VIOLATION"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeUnresolvedConflicts Code = "UNRESOLVED_CONFLICTS"
)

type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func policyViolation(format string, args ...any) *Error {
	return newError(CodePolicyViolation, format, args...)
}

func invalidState(format string, args ...any) *Error {
	return newError(CodeInvalidState, format, args...)
}

func unresolvedConflicts(format string, args ...any) *Error {
	return newError(CodeUnresolvedConflicts, format, args...)
}

// HasCode reports whether err carries the given engine code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var engineErr *Error
	return errors.As(err, &engineErr) && engineErr.Code == code
}

func IsNotFound(err error) bool            { return HasCode(err, CodeNotFound) }
func IsPolicyViolation(err error) bool     { return HasCode(err, CodePolicyViolation) }
func IsInvalidState(err error) bool        { return HasCode(err, CodeInvalidState) }
func IsUnresolvedConflicts(err error) bool { return HasCode(err, CodeUnresolvedConflicts) }
