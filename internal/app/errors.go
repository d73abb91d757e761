package app

import (
	"errors"
	"fmt"
	"net/http"

	"dealroom/api/internal/lock"
	"dealroom/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func notFoundError(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func invalidStateError(message string, status string) *DomainError {
	return domainError(http.StatusConflict, "INVALID_STATE", message, map[string]any{"status": status})
}

func permissionDenied(message string) *DomainError {
	return domainError(http.StatusForbidden, "PERMISSION_DENIED", message, nil)
}

// storeError maps a store failure onto the API error kinds. what names the
// entity for not-found messages.
func storeError(err error, what string) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		e := notFoundError(what)
		e.Cause = err
		return e
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, lock.ErrTimeout):
		e := domainError(http.StatusConflict, "CONFLICT", what+" was modified concurrently; reload and retry", nil)
		e.Cause = err
		return e
	default:
		e := domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "storage is temporarily unavailable", nil)
		e.Cause = err
		return e
	}
}
