// Package server provides the HTTP API for the OTJ tracker.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/types"
)

// ErrNotFound indicates a resource does not exist or belongs to another user
type ErrNotFound struct {
	Resource string
	ID       any
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Fields types.FieldErrors
}

func (e *ErrValidation) Error() string {
	return "validation failed: " + e.Fields.Error()
}

// ErrBadRequest indicates a malformed request
type ErrBadRequest struct {
	Message string
}

func (e *ErrBadRequest) Error() string {
	return e.Message
}

// ErrAccessDenied indicates a sign-in from an email outside the allow list
type ErrAccessDenied struct {
	Email string
}

func (e *ErrAccessDenied) Error() string {
	return fmt.Sprintf("access denied for %s", e.Email)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if errors.Is(err, db.ErrDuplicateTag) {
		return http.StatusConflict
	}
	switch err.(type) {
	case *ErrNotFound:
		return http.StatusNotFound
	case *ErrValidation:
		return http.StatusUnprocessableEntity
	case *ErrBadRequest:
		return http.StatusBadRequest
	case *ErrAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// validationError wraps a request Validate result. Non-field errors pass through.
func validationError(err error) error {
	var fields types.FieldErrors
	if errors.As(err, &fields) {
		return &ErrValidation{Fields: fields}
	}
	return err
}
