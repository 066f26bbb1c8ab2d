package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pgscope/internal/readonly"
	"pgscope/pkg/logging"
)

// Handlers never return a Go error for a failed call. Failures become an
// error result so the calling agent can read the reason and adapt, and
// one bad call never tears down the session.

func (s *Server) handleListSchemas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schemas, err := s.database.ListSchemas(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list schemas: %v", err)), nil
	}
	return jsonResult(schemas)
}

func (s *Server) handleListTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, err := request.RequireString("schema")
	if err != nil {
		return mcp.NewToolResultError("schema parameter is required"), nil
	}

	tables, err := s.database.ListTables(ctx, schema)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tables in %s: %v", schema, err)), nil
	}
	return jsonResult(tables)
}

func (s *Server) handleDescribeTable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, err := request.RequireString("schema")
	if err != nil {
		return mcp.NewToolResultError("schema parameter is required"), nil
	}
	table, err := request.RequireString("table")
	if err != nil {
		return mcp.NewToolResultError("table parameter is required"), nil
	}

	description, err := s.database.DescribeTable(ctx, schema, table)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to describe %s.%s: %v", schema, table, err)), nil
	}
	return jsonResult(description)
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sql, err := request.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError("sql parameter is required"), nil
	}

	// The classifier runs before anything reaches the database.
	if err := readonly.Check(sql); err != nil {
		logging.Warn(subsystem, "rejected query: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("Query rejected: %v", err)), nil
	}

	limit := requestedLimit(request)
	result, err := s.database.Execute(ctx, sql, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Query failed: %v", err)), nil
	}
	return jsonResult(result)
}

// requestedLimit reads the optional numeric limit argument. JSON numbers
// arrive as float64; anything unusable means "no limit requested".
func requestedLimit(request mcp.CallToolRequest) int {
	args := request.GetArguments()
	raw, ok := args["limit"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
