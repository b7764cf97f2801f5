package llm

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by the stub when no canned behaviour is configured.
var ErrUnavailable = errors.New("language model unavailable")

// APICallError represents a failed call to the model provider.
type APICallError struct {
	Operation string
	Cause     error
}

func (e *APICallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Operation, e.Cause)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// ParseError represents a model reply that could not be parsed or failed schema validation.
type ParseError struct {
	Operation string
	Reply     string
	Cause     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s reply: %v", e.Operation, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
