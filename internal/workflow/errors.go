package workflow

import (
	"errors"
	"fmt"

	"github.com/jonathan/resourcewise/internal/db"
)

// ErrorCode classifies a stage failure.
type ErrorCode string

// Stage error codes.
const (
	CodeClassification  ErrorCode = "CLASSIFICATION_ERROR"
	CodeQueryGeneration ErrorCode = "QUERY_GENERATION_ERROR"
	CodeDatabase        ErrorCode = "DATABASE_EXECUTION_ERROR"
	CodeMatching        ErrorCode = "MATCHING_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// GenericErrorMessage is shown when nothing more specific can be said.
const GenericErrorMessage = "Something went wrong while processing your request. Please try again."

// StageError is a failure recorded by a stage handler.
type StageError struct {
	Code    ErrorCode `json:"code"`
	Stage   Stage     `json:"stage,omitempty"`
	Message string    `json:"message"`
	// Category is set for database failures.
	Category db.ErrorCategory `json:"category,omitempty"`
	Cause    error            `json:"-"`
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s in %s: %s: %v", e.Code, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s in %s: %s", e.Code, e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Surfaced reports whether the failure is explained to the user with its own code.
// Query generation, database and matching failures are; anything else is reported
// only as the generic message.
func (e *StageError) Surfaced() bool {
	switch e.Code {
	case CodeQueryGeneration, CodeDatabase, CodeMatching:
		return true
	}
	return false
}

// public is the form of e that may leave the process: internal detail is replaced
// by GenericErrorMessage.
func (e *StageError) public() *StageError {
	if e.Surfaced() {
		return e
	}
	return &StageError{Code: e.Code, Stage: e.Stage, Message: GenericErrorMessage}
}

// codeFor is the code given to an untyped error from stage.
func codeFor(stage Stage) ErrorCode {
	switch stage {
	case StageIntentClassification, StageProjectInfoExtraction:
		return CodeClassification
	case StageQueryGeneration:
		return CodeQueryGeneration
	case StageDatabaseExecution:
		return CodeDatabase
	case StageResourceMatching:
		return CodeMatching
	default:
		return CodeInternal
	}
}

// asStageError converts a handler error into a *StageError attributed to stage.
func asStageError(stage Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		if se.Stage == "" {
			se.Stage = stage
		}
		return se
	}
	out := &StageError{Code: codeFor(stage), Stage: stage, Message: err.Error(), Cause: err}
	if cat, ok := db.CategoryOf(err); ok {
		out.Code = CodeDatabase
		out.Category = cat
	}
	return out
}
