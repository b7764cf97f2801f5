package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorCategory classifies why a query could not be executed.
type ErrorCategory string

// Execution error categories.
const (
	CategorySecurity   ErrorCategory = "SECURITY_VIOLATION"
	CategoryTimeout    ErrorCategory = "TIMEOUT"
	CategorySyntax     ErrorCategory = "SYNTAX_ERROR"
	CategoryConnection ErrorCategory = "CONNECTION_ERROR"
	CategoryPermission ErrorCategory = "PERMISSION_ERROR"
)

// ExecutionError is the typed failure returned by Executor.Execute.
type ExecutionError struct {
	Category ErrorCategory
	Message  string
	Cause    error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// FriendlyMessage is the user-facing explanation for the category.
func (e *ExecutionError) FriendlyMessage() string {
	return FriendlyMessage(e.Category)
}

// FriendlyMessage maps a category to a message safe to show to users.
func FriendlyMessage(category ErrorCategory) string {
	switch category {
	case CategorySecurity:
		return "I can't run that request because it falls outside what I'm allowed to read. Please try asking it a different way."
	case CategoryTimeout:
		return "That request took too long to answer. Please try a more specific question."
	case CategorySyntax:
		return "I couldn't turn that into a valid request. Could you rephrase the question?"
	case CategoryConnection:
		return "I'm having trouble reaching the data right now. Please try again in a moment."
	case CategoryPermission:
		return "I don't have access to the data needed to answer that."
	default:
		return "I ran into a problem retrieving that data. Please try again."
	}
}

// CategoryOf returns the category of err when it is an *ExecutionError.
func CategoryOf(err error) (ErrorCategory, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category, true
	}
	return "", false
}

// classify turns a driver error into an ExecutionError.
func classify(err error) *ExecutionError {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ExecutionError{Category: CategoryTimeout, Message: "query exceeded the time limit", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &ExecutionError{Category: categoryForSQLState(pgErr.Code), Message: pgErr.Message, Cause: err}
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || errors.Is(err, context.Canceled) {
		return &ExecutionError{Category: CategoryConnection, Message: "database connection failed", Cause: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection"):
		return &ExecutionError{Category: CategoryConnection, Message: "database connection failed", Cause: err}
	case strings.Contains(msg, "permission"), strings.Contains(msg, "access"):
		return &ExecutionError{Category: CategoryPermission, Message: "access denied", Cause: err}
	default:
		return &ExecutionError{Category: CategorySyntax, Message: "query could not be executed", Cause: err}
	}
}

// categoryForSQLState maps PostgreSQL SQLSTATE codes to a category.
func categoryForSQLState(code string) ErrorCategory {
	switch {
	case code == "57014": // query_canceled, raised by statement_timeout
		return CategoryTimeout
	case code == "42501": // insufficient_privilege
		return CategoryPermission
	case code == "25006": // read_only_sql_transaction
		return CategorySecurity
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57P"):
		return CategoryConnection
	case strings.HasPrefix(code, "28"): // invalid authorization
		return CategoryPermission
	default:
		return CategorySyntax
	}
}
