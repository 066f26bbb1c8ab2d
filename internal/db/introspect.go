package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// SchemaInfo is one row of ListSchemas.
type SchemaInfo struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// TableInfo is one row of ListTables. EstimatedRows comes from planner
// statistics, not a count, so it is cheap but approximate.
type TableInfo struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	EstimatedRows int64  `json:"estimatedRows"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string   `json:"name"`
	DataType   string   `json:"dataType"`
	Nullable   bool     `json:"nullable"`
	Default    string   `json:"default,omitempty"`
	EnumValues []string `json:"enumValues,omitempty"`
}

// ConstraintInfo describes a key constraint on a table.
type ConstraintInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
	// Referenced is set for foreign keys, as schema.table(column, ...).
	Referenced string `json:"referenced,omitempty"`
}

// TableDescription is the full describe_table payload.
type TableDescription struct {
	Schema      string           `json:"schema"`
	Table       string           `json:"table"`
	Columns     []ColumnInfo     `json:"columns"`
	Constraints []ConstraintInfo `json:"constraints"`
}

const listSchemasSQL = `
SELECT n.nspname, pg_get_userbyid(n.nspowner)
FROM pg_catalog.pg_namespace n
WHERE n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
  AND n.nspname NOT LIKE 'pg_temp_%'
  AND n.nspname NOT LIKE 'pg_toast_temp_%'
ORDER BY n.nspname`

// ListSchemas returns the non-system schemas of the connected database.
func (c *Client) ListSchemas(ctx context.Context) ([]SchemaInfo, error) {
	rows, err := c.db.QueryContext(ctx, listSchemasSQL)
	if err != nil {
		return nil, fmt.Errorf("listing schemas: %w", err)
	}
	defer rows.Close()

	var schemas []SchemaInfo
	for rows.Next() {
		var s SchemaInfo
		if err := rows.Scan(&s.Name, &s.Owner); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		schemas = append(schemas, s)
	}
	return schemas, rows.Err()
}

const listTablesSQL = `
SELECT c.relname,
       CASE c.relkind
         WHEN 'r' THEN 'table'
         WHEN 'p' THEN 'partitioned table'
         WHEN 'v' THEN 'view'
         WHEN 'm' THEN 'materialized view'
         WHEN 'f' THEN 'foreign table'
         ELSE c.relkind::text
       END,
       GREATEST(c.reltuples::bigint, 0)
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
ORDER BY c.relname`

// ListTables returns tables and views of a schema with estimated row
// counts from pg_class.reltuples.
func (c *Client) ListTables(ctx context.Context, schema string) ([]TableInfo, error) {
	rows, err := c.db.QueryContext(ctx, listTablesSQL, schema)
	if err != nil {
		return nil, fmt.Errorf("listing tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Kind, &t.EstimatedRows); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

const describeColumnsSQL = `
SELECT column_name, data_type, udt_name, is_nullable = 'YES',
       COALESCE(column_default, '')
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const enumValuesSQL = `
SELECT e.enumlabel
FROM pg_catalog.pg_enum e
JOIN pg_catalog.pg_type t ON t.oid = e.enumtypid
WHERE t.typname = $1
ORDER BY e.enumsortorder`

const describeConstraintsSQL = `
SELECT tc.constraint_name,
       tc.constraint_type,
       array_agg(kcu.column_name ORDER BY kcu.ordinal_position),
       COALESCE(
         (SELECT ccu.table_schema || '.' || ccu.table_name || '(' ||
                 string_agg(ccu.column_name, ', ') || ')'
          FROM information_schema.constraint_column_usage ccu
          WHERE ccu.constraint_name = tc.constraint_name
            AND ccu.constraint_schema = tc.constraint_schema
            AND tc.constraint_type = 'FOREIGN KEY'
          GROUP BY ccu.table_schema, ccu.table_name),
         '')
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.constraint_schema = tc.constraint_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2
  AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY', 'UNIQUE')
GROUP BY tc.constraint_name, tc.constraint_type, tc.constraint_schema
ORDER BY tc.constraint_type, tc.constraint_name`

// DescribeTable returns columns, key constraints, and enum values for
// user-defined enum columns.
func (c *Client) DescribeTable(ctx context.Context, schema, table string) (*TableDescription, error) {
	desc := &TableDescription{Schema: schema, Table: table}

	rows, err := c.db.QueryContext(ctx, describeColumnsSQL, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describing %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var udtNames []string
	for rows.Next() {
		var col ColumnInfo
		var udtName string
		if err := rows.Scan(&col.Name, &col.DataType, &udtName, &col.Nullable, &col.Default); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		desc.Columns = append(desc.Columns, col)
		udtNames = append(udtNames, udtName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(desc.Columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, table)
	}

	for i := range desc.Columns {
		if desc.Columns[i].DataType != "USER-DEFINED" {
			continue
		}
		values, err := c.enumValues(ctx, udtNames[i])
		if err != nil {
			return nil, err
		}
		desc.Columns[i].EnumValues = values
	}

	constraints, err := c.tableConstraints(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	desc.Constraints = constraints

	return desc, nil
}

func (c *Client) enumValues(ctx context.Context, typeName string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, enumValuesSQL, typeName)
	if err != nil {
		return nil, fmt.Errorf("reading enum values for %s: %w", typeName, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning enum value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (c *Client) tableConstraints(ctx context.Context, schema, table string) ([]ConstraintInfo, error) {
	rows, err := c.db.QueryContext(ctx, describeConstraintsSQL, schema, table)
	if err != nil {
		return nil, fmt.Errorf("reading constraints for %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var constraints []ConstraintInfo
	for rows.Next() {
		var info ConstraintInfo
		var columns pq.StringArray
		if err := rows.Scan(&info.Name, &info.Type, &columns, &info.Referenced); err != nil {
			return nil, fmt.Errorf("scanning constraint row: %w", err)
		}
		info.Columns = []string(columns)
		constraints = append(constraints, info)
	}
	return constraints, rows.Err()
}
