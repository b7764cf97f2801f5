package db

import (
	"context"
	"fmt"
	"strings"
)

// SchemaTables are the tables generated queries may read.
var SchemaTables = []string{"employees", "designations", "employee_skills", "projects", "allocations"}

// FallbackSchema describes the tables when introspection is unavailable.
const FallbackSchema = `Table employees: id (uuid), email (text), name (text), designation_id (uuid -> designations.id), capacity_percent (integer), onboarded_at (date), is_active (boolean), location (text), organization (text)
Table designations: id (uuid), code (text, e.g. TL, SSE, SE), title (text), level (integer, 1=junior), is_leadership (boolean), is_active (boolean)
Table employee_skills: id (uuid), employee_id (uuid -> employees.id), skill_name (text), experience_months (integer), last_used (date), proficiency_level (integer 1-5)
Table projects: id (uuid), name (text), status (planning|active|on_hold|completed|cancelled), start_date (date), end_date (date), duration_months (integer), tech_stack (text[]), required_skills (text[])
Table allocations: id (uuid), project_id (uuid -> projects.id), employee_id (uuid -> employees.id), percent_allocated (integer 25|50|75|100), start_date (date), end_date (date), status (active|completed|cancelled)`

// DescribeSchema renders the queryable tables from information_schema.
// Columns holding search vectors and embeddings are left out.
func (db *DB) DescribeSchema(ctx context.Context) (string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT table_name, column_name, data_type
		 FROM information_schema.columns
		 WHERE table_schema = current_schema()
		   AND table_name = ANY($1)
		   AND column_name NOT IN ('search_vector', 'embedding')
		 ORDER BY array_position($1, table_name::text), ordinal_position`,
		SchemaTables,
	)
	if err != nil {
		return "", fmt.Errorf("failed to describe schema: %w", err)
	}
	defer rows.Close()

	var (
		b       strings.Builder
		current string
		cols    []string
	)
	flush := func() {
		if current != "" {
			fmt.Fprintf(&b, "Table %s: %s\n", current, strings.Join(cols, ", "))
		}
	}
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return "", fmt.Errorf("failed to scan schema column: %w", err)
		}
		if table != current {
			flush()
			current, cols = table, nil
		}
		cols = append(cols, fmt.Sprintf("%s (%s)", column, dataType))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	flush()

	if b.Len() == 0 {
		return "", fmt.Errorf("no known tables found in schema")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// SchemaOrFallback returns the live description, or FallbackSchema when introspection fails.
func (db *DB) SchemaOrFallback(ctx context.Context) string {
	schema, err := db.DescribeSchema(ctx)
	if err != nil {
		return FallbackSchema
	}
	return schema
}
