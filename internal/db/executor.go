package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pgscope/pkg/logging"
)

// MaxRows caps how many rows a single query may return to the model.
// Requested limits above this are clamped, never honored.
const MaxRows = 5000

// QueryResult is the shape handed back to the tool layer.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"rowCount"`
	Truncated bool             `json:"truncated"`
}

// Execute runs an already-classified read-only query with a row cap. It
// fetches one row past the effective limit so Truncated reports whether
// the result was cut, without a second counting query.
func (c *Client) Execute(ctx context.Context, query string, requestedLimit int) (*QueryResult, error) {
	limit := clampLimit(requestedLimit)
	query = stripTerminator(query)

	// Wrapping works for any SELECT shape including ORDER BY and CTEs.
	// Statements that cannot appear in a subquery (SHOW, EXPLAIN) reject
	// the wrapper, so fall back to a bare LIMIT clause for those.
	rows, err := c.db.QueryContext(ctx, wrapQuery(query, limit+1))
	if err != nil {
		logging.Debug(subsystem, "wrapped form rejected, retrying with bare limit: %v", err)
		rows, err = c.db.QueryContext(ctx, appendLimit(query, limit+1))
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	collected, err := scanRows(rows, columns)
	if err != nil {
		return nil, err
	}

	truncated := len(collected) > limit
	if truncated {
		collected = collected[:limit]
	}

	return &QueryResult{
		Columns:   columns,
		Rows:      collected,
		RowCount:  len(collected),
		Truncated: truncated,
	}, nil
}

func clampLimit(requested int) int {
	if requested <= 0 || requested > MaxRows {
		return MaxRows
	}
	return requested
}

// stripTerminator removes a single trailing semicolon so the statement can
// be embedded in a subquery or extended with a LIMIT clause.
func stripTerminator(query string) string {
	query = strings.TrimSpace(query)
	query = strings.TrimSuffix(query, ";")
	return strings.TrimSpace(query)
}

func wrapQuery(query string, n int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS pgscope_sub LIMIT %d", query, n)
}

func appendLimit(query string, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}

// scanRows reads every row into generic maps. Byte slices become strings
// so JSON encoding renders text columns as text rather than base64.
func scanRows(rows *sql.Rows, columns []string) ([]map[string]any, error) {
	var out []map[string]any

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return out, nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
