package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonathan/resourcewise/internal/observability"
)

// Executor defaults.
const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 1000
)

// QueryExecutor runs a generated read-only query.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*QueryResult, error)
}

// QueryResult is the tabular outcome of a query.
type QueryResult struct {
	Rows          []map[string]any `json:"rows"`
	Columns       []string         `json:"columns"`
	RowCount      int              `json:"row_count"`
	Truncated     bool             `json:"truncated"`
	ExecutionTime time.Duration    `json:"execution_time"`
}

// ExecutorOptions bounds every execution.
type ExecutorOptions struct {
	Timeout time.Duration
	MaxRows int
}

func (o ExecutorOptions) withDefaults() ExecutorOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultQueryTimeout
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	return o
}

// rowReader runs query and returns at most limit rows.
type rowReader func(ctx context.Context, query string, timeout time.Duration, limit int) (columns []string, rows [][]any, err error)

// Executor validates and runs generated queries inside read-only transactions.
type Executor struct {
	read   rowReader
	opts   ExecutorOptions
	logger *slog.Logger
}

// NewExecutor creates an executor over the pool. A nil logger uses slog.Default().
func NewExecutor(db *DB, opts ExecutorOptions, logger *slog.Logger) *Executor {
	return newExecutor(db.readOnly, opts, logger)
}

func newExecutor(read rowReader, opts ExecutorOptions, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{read: read, opts: opts.withDefaults(), logger: logger}
}

// Execute validates query, runs it and returns at most MaxRows rows.
// Failures are always *ExecutionError.
func (e *Executor) Execute(ctx context.Context, query string) (result *QueryResult, err error) {
	ctx, span := observability.StartSpan(ctx, "db.execute", attribute.Int("db.max_rows", e.opts.MaxRows))
	start := time.Now()
	defer func() {
		status := "ok"
		if cat, ok := CategoryOf(err); ok {
			status = string(cat)
		}
		observability.RecordQuery(status, time.Since(start))
		observability.EndSpan(span, err)
	}()

	if err := ValidateQuery(query); err != nil {
		e.logger.Warn("rejected generated query", slog.String("reason", err.Error()))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	columns, rows, err := e.read(ctx, query, e.opts.Timeout, e.opts.MaxRows+1)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		ee := classify(err)
		e.logger.Warn("query execution failed",
			slog.String("category", string(ee.Category)),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, ee
	}

	truncated := len(rows) > e.opts.MaxRows
	if truncated {
		rows = rows[:e.opts.MaxRows]
	}

	result = &QueryResult{
		Rows:          make([]map[string]any, 0, len(rows)),
		Columns:       columns,
		RowCount:      len(rows),
		Truncated:     truncated,
		ExecutionTime: time.Since(start),
	}
	for _, values := range rows {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = normalizeValue(values[i])
			}
		}
		result.Rows = append(result.Rows, row)
	}

	e.logger.Debug("query executed",
		slog.Int("rows", result.RowCount),
		slog.Bool("truncated", truncated),
		slog.Duration("elapsed", result.ExecutionTime),
	)
	return result, nil
}

// readOnly runs query in a read-only transaction with a statement timeout.
func (db *DB) readOnly(ctx context.Context, query string, timeout time.Duration, limit int) ([]string, [][]any, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())); err != nil {
		return nil, nil, fmt.Errorf("failed to set statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var out [][]any
	for rows.Next() {
		if len(out) >= limit {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

// normalizeValue converts driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case *big.Int:
		return val.String()
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return v
	}
}
