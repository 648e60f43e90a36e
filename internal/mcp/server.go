package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docrag-mcp/internal/pipeline"
	"github.com/dshills/docrag-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "docrag-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Backend is the retrieval surface the tools call into. *pipeline.Pipeline
// implements it.
type Backend interface {
	Search(ctx context.Context, req pipeline.Request) types.Result[[]types.RankedResult]
	Context(ctx context.Context, req pipeline.Request) types.Result[types.RAGContext]
	LookupAPIs(ctx context.Context, ids []string) []types.Result[*types.APIDoc]
	Domains() []pipeline.DomainInfo
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	backend Backend
}

// NewServer creates a new MCP server instance over backend
func NewServer(backend Backend, version string) *Server {
	if version == "" {
		version = ServerVersion
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		backend: backend,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocsTool(), s.handleSearchDocs)
	s.mcp.AddTool(getContextTool(), s.handleGetContext)
	s.mcp.AddTool(lookupAPITool(), s.handleLookupAPI)
	s.mcp.AddTool(listDomainsTool(), s.handleListDomains)
}
