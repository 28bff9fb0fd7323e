// Package query executes resolved SELECT statements and materializes results.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/oceanlab/argonaut/internal/log"
	"github.com/oceanlab/argonaut/internal/sqlextract"
)

// ErrNotSelect is returned for statements that fail the SELECT prefix gate.
// This gate keeps writes out of the request path; it is not an injection
// defense.
var ErrNotSelect = errors.New("statement is not a SELECT")

// Result is one rectangular result set. Rows are fully materialized; Columns
// preserves the wire order since row maps lose it.
type Result struct {
	Columns []string
	Rows    []map[string]any

	// Truncated is set when the row cap cut off a larger result.
	Truncated bool
}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// HasColumns reports whether every named column is present.
func (r *Result) HasColumns(names ...string) bool {
	if r == nil {
		return false
	}
	for _, name := range names {
		found := false
		for _, c := range r.Columns {
			if c == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HasGeo reports whether the result carries latitude and longitude columns
// and is therefore map-displayable.
func (r *Result) HasGeo() bool {
	return r.HasColumns("latitude", "longitude")
}

// ProfileIDs returns the non-null values of the profile_id column as int64,
// or nil when the column is absent. Used to seed follow-up session state.
func (r *Result) ProfileIDs() []int64 {
	if !r.HasColumns("profile_id") {
		return nil
	}
	var ids []int64
	for _, row := range r.Rows {
		switch v := row["profile_id"].(type) {
		case int64:
			ids = append(ids, v)
		case int32:
			ids = append(ids, int64(v))
		case float64:
			ids = append(ids, int64(v))
		}
	}
	return ids
}

// Querier is the subset of pgxpool.Pool the executor needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor runs SELECT statements against the shared pool and materializes
// the full result set in memory, capped at maxRows.
type Executor struct {
	q       Querier
	maxRows int
	logger  log.Logger
}

// NewExecutor creates an Executor. maxRows < 1 disables the cap.
func NewExecutor(q Querier, maxRows int, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Executor{q: q, maxRows: maxRows, logger: logger}
}

// Run executes sql and returns the materialized result.
// Statements that do not start with SELECT are rejected with ErrNotSelect.
func (e *Executor) Run(ctx context.Context, sql string) (*Result, error) {
	if !sqlextract.IsSelect(sql) {
		return nil, ErrNotSelect
	}

	rows, err := e.q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	res := &Result{Columns: columns}
	for rows.Next() {
		if e.maxRows > 0 && len(res.Rows) >= e.maxRows {
			res.Truncated = true
			e.logger.Warn("result truncated at row cap", "max_rows", e.maxRows)
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	e.logger.Debug("query executed", "columns", len(res.Columns), "rows", len(res.Rows))
	return res, nil
}

// normalizeValue flattens pgx driver types that don't serialize or compare
// usefully. NUMERIC columns (every ROUND(...) aggregate) come back as
// pgtype.Numeric; callers want plain float64.
func normalizeValue(v any) any {
	if n, ok := v.(pgtype.Numeric); ok {
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
