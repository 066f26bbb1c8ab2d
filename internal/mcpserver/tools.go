package mcpserver

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pgscope/internal/db"
)

// introspectionTools returns the always-available structure tools.
func introspectionTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("list_schemas",
			mcp.WithDescription("List all non-system schemas in the connected database"),
		),
		mcp.NewTool("list_tables",
			mcp.WithDescription("List tables and views in a schema with estimated row counts"),
			mcp.WithString("schema",
				mcp.Required(),
				mcp.Description("Schema name to list tables from"),
			),
		),
		mcp.NewTool("describe_table",
			mcp.WithDescription("Describe a table's columns, keys, and enum values"),
			mcp.WithString("schema",
				mcp.Required(),
				mcp.Description("Schema the table belongs to"),
			),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description("Table name to describe"),
			),
		),
	}
}

// queryTool returns the arbitrary-query tool. It is omitted entirely in
// structure-only mode rather than registered and rejected at call time.
func queryTool() mcp.Tool {
	return mcp.NewTool("query",
		mcp.WithDescription(fmt.Sprintf(
			"Execute a read-only SQL query. Statements that could modify the database are rejected. At most %d rows are returned.", db.MaxRows)),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute (SELECT, WITH, SHOW, EXPLAIN, ...)"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of rows to return (default and cap: %d)", db.MaxRows)),
		),
	)
}
