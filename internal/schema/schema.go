// Package schema renders the live database schema as prompt text.
//
// The agent and the SQL fallback both ground their queries in the actual
// tables and columns, so the schema is read from information_schema on demand
// rather than hardcoded.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/oceanlab/argonaut/internal/log"
)

// Querier is the subset of pgxpool.Pool the introspector needs.
// Defined here so tests can substitute a fake.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Column describes one column of an introspected table.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// Table describes one introspected table with columns in ordinal order.
type Table struct {
	Name    string
	Columns []Column
}

const columnsQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'public'
  AND table_name IN ('profiles', 'measurements')
ORDER BY table_name, ordinal_position`

// Introspector reads table definitions from PostgreSQL.
type Introspector struct {
	q      Querier
	logger log.Logger
}

// New creates an Introspector backed by the given querier.
func New(q Querier, logger log.Logger) *Introspector {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Introspector{q: q, logger: logger}
}

// Tables returns the profiles and measurements table definitions.
func (in *Introspector) Tables(ctx context.Context) ([]Table, error) {
	rows, err := in.q.Query(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("querying information_schema: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, Table{Name: tableName})
		}
		t := &tables[len(tables)-1]
		t.Columns = append(t.Columns, Column{
			Name:     columnName,
			DataType: dataType,
			Nullable: isNullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column rows: %w", err)
	}

	in.logger.Debug("introspected schema", "tables", len(tables))
	return tables, nil
}

// Render returns the schema as a text block suitable for prompting.
func (in *Introspector) Render(ctx context.Context) (string, error) {
	tables, err := in.Tables(ctx)
	if err != nil {
		return "", err
	}
	return RenderTables(tables), nil
}

// RenderTables formats table definitions as CREATE TABLE-style text.
func RenderTables(tables []Table) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "TABLE %s (", t.Name)
		for j, c := range t.Columns {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "    %s %s", c.Name, c.DataType)
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
		}
		b.WriteString("\n)")
	}
	return b.String()
}
