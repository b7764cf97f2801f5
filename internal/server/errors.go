package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/resourcewise/internal/matching"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/workflow"
)

// ErrSessionNotFound indicates the session does not exist or belongs to another user.
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrInvalidBody indicates a request body that is not valid JSON.
type ErrInvalidBody struct {
	Cause error
}

func (e *ErrInvalidBody) Error() string {
	return fmt.Sprintf("invalid request body: %v", e.Cause)
}

func (e *ErrInvalidBody) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound   *ErrSessionNotFound
		validation *ErrValidation
		body       *ErrInvalidBody
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &body):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrEmptyInput), errors.Is(err, session.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, matching.ErrNoResources):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to clients for a 4xx error. Request errors
// raised below the server are reported by their sentinel, without the wrapping
// context added on the way up.
func publicMessage(err error) string {
	for _, sentinel := range []error{workflow.ErrEmptyInput, session.ErrInvalidID, matching.ErrNoResources} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// validationError converts validator output into an ErrValidation naming the first failing field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	// Namespace is "queryRequest.project.name"; drop the request type
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	msg := "failed on '" + fe.Tag() + "'"
	if fe.Param() != "" {
		msg += " (" + fe.Param() + ")"
	}
	return &ErrValidation{Field: field, Message: msg}
}
