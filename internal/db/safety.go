package db

import (
	"regexp"
	"strings"
)

// Complexity limits applied before a query reaches the database.
const (
	MaxParentheses = 10
	MaxJoins       = 5
)

var (
	allowedStart      = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
	writeKeywords     = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|COPY)\b`)
	procedureKeywords = regexp.MustCompile(`(?i)(\b(EXEC|EXECUTE)\b|\bxp_|\bsp_)`)
	joinKeyword       = regexp.MustCompile(`(?i)\bJOIN\b`)
	timingFunctions   = []string{"PG_SLEEP", "DBMS_LOCK", "WAITFOR"}
)

// ValidateQuery rejects anything that is not a single, simple, read-only statement.
// The returned error is always a SECURITY_VIOLATION *ExecutionError.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return violation("empty query")
	}
	if !allowedStart.MatchString(trimmed) {
		first := strings.ToUpper(strings.Fields(trimmed)[0])
		return violation("operation " + first + " is not allowed; only SELECT queries are permitted")
	}
	if strings.Contains(strings.TrimRight(trimmed, "; \t\n"), ";") {
		return violation("multiple statements are not allowed")
	}
	if m := writeKeywords.FindString(trimmed); m != "" {
		return violation("query contains a write keyword: " + strings.ToUpper(m))
	}
	if m := procedureKeywords.FindString(trimmed); m != "" {
		return violation("query contains a procedure call: " + strings.ToUpper(m))
	}
	if strings.Count(trimmed, "(") > MaxParentheses || len(joinKeyword.FindAllStringIndex(trimmed, -1)) > MaxJoins {
		return violation("query is too complex")
	}
	upper := strings.ToUpper(trimmed)
	for _, fn := range timingFunctions {
		if strings.Contains(upper, fn) {
			return violation("function " + fn + " is not allowed")
		}
	}
	return nil
}

func violation(msg string) error {
	return &ExecutionError{Category: CategorySecurity, Message: msg}
}
