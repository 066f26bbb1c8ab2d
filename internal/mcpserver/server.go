// Package mcpserver exposes the database over the Model Context Protocol.
// The transport is stdio, so nothing in the process may write to stdout
// except the protocol itself.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"pgscope/internal/db"
	"pgscope/pkg/logging"
)

const subsystem = "MCP"

// Database is the query surface the handlers need. *db.Client satisfies
// it; tests substitute a fake.
type Database interface {
	ListSchemas(ctx context.Context) ([]db.SchemaInfo, error)
	ListTables(ctx context.Context, schema string) ([]db.TableInfo, error)
	DescribeTable(ctx context.Context, schema, table string) (*db.TableDescription, error)
	Execute(ctx context.Context, query string, requestedLimit int) (*db.QueryResult, error)
}

// Server wires the tool definitions to their handlers.
type Server struct {
	database  Database
	mcpServer *server.MCPServer
}

// New builds the MCP server and registers the tools. When structureOnly
// is set the query tool is not registered at all, so a connected agent
// cannot even see it.
func New(database Database, name, version string, structureOnly bool) *Server {
	s := &Server{
		database: database,
		mcpServer: server.NewMCPServer(
			name,
			version,
			server.WithToolCapabilities(true),
			server.WithLogging(),
		),
	}

	for _, tool := range introspectionTools() {
		switch tool.Name {
		case "list_schemas":
			s.mcpServer.AddTool(tool, s.handleListSchemas)
		case "list_tables":
			s.mcpServer.AddTool(tool, s.handleListTables)
		case "describe_table":
			s.mcpServer.AddTool(tool, s.handleDescribeTable)
		}
	}

	if structureOnly {
		logging.Info(subsystem, "structure-only mode, query tool not registered")
	} else {
		s.mcpServer.AddTool(queryTool(), s.handleQuery)
	}

	return s
}

// Serve runs the stdio transport until the client disconnects.
func (s *Server) Serve() error {
	logging.Info(subsystem, "serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}
