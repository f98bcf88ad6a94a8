package app

import (
	"errors"
	"fmt"
	"net/http"

	"concord/api/internal/vcs"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// fromEngine translates engine errors into HTTP-mapped domain errors.
// Anything that is not a typed engine error passes through unchanged.
func fromEngine(err error) error {
	if err == nil {
		return nil
	}
	var engineErr *vcs.Error
	if !errors.As(err, &engineErr) {
		return err
	}
	return domainError(statusForCode(engineErr.Code), string(engineErr.Code), engineErr.Message, engineErr.Details)
}

func statusForCode(code vcs.Code) int {
	switch code {
	case vcs.CodeNotFound:
		return http.StatusNotFound
	case vcs.CodePolicyViolation:
		return http.StatusUnprocessableEntity
	case vcs.CodeInvalidState, vcs.CodeUnresolvedConflicts:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
