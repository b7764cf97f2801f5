package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resourcewise/internal/matching"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/workflow"
)

func TestErrSessionNotFound(t *testing.T) {
	err := &ErrSessionNotFound{SessionID: "abc"}
	assert.Equal(t, "session not found: abc", err.Error())
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "query", Message: "failed on 'required'"}
	assert.Equal(t, "validation error: query - failed on 'required'", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestErrInvalidBody(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &ErrInvalidBody{Cause: cause}
	assert.Equal(t, "invalid request body: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"wrapped invalid session", fmt.Errorf("failed to start request: %w", session.ErrInvalidID), "invalid session id"},
		{"empty input", workflow.ErrEmptyInput, "input is required"},
		{"wrapped no resources", fmt.Errorf("failed to match team: %w", matching.ErrNoResources), "project requests no resources"},
		{"other", &ErrValidation{Field: "query", Message: "failed on 'required'"}, "validation error: query - failed on 'required'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicMessage(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"wrapped not found", fmt.Errorf("lookup: %w", &ErrSessionNotFound{SessionID: "x"}), http.StatusNotFound},
		{"empty input", workflow.ErrEmptyInput, http.StatusBadRequest},
		{"invalid session", fmt.Errorf("failed to start request: %w", session.ErrInvalidID), http.StatusBadRequest},
		{"no resources", matching.ErrNoResources, http.StatusUnprocessableEntity},
		{"closed store", session.ErrClosed, http.StatusServiceUnavailable},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
