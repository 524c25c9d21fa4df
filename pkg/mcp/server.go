package mcp

import (
	"github.com/bengsfort/providesmod/pkg/indexer"
	"github.com/bengsfort/providesmod/pkg/mcplog"
	"github.com/bengsfort/providesmod/pkg/registry"
	"github.com/mark3labs/mcp-go/server"
)

const serverVersion = "0.1.0-dev"

// Server exposes the module registry over MCP, so agents editing a
// @providesModule workspace get the same completion and lookup surface an
// editor does.
type Server struct {
	mcpServer *server.MCPServer
	query     *registry.QueryService
	indexer   *indexer.Indexer // may be nil: query-only, rescan_workspace unavailable
	toolLog   *mcplog.Logger   // may be nil: tool-call logging disabled
}

// NewServer creates an MCP server backed by the given QueryService. An
// indexer is optional; without one rescan_workspace returns an error result
// and index_stats covers the registry only.
func NewServer(qs *registry.QueryService, ix *indexer.Indexer, toolLog *mcplog.Logger) *Server {
	s := &Server{query: qs, indexer: ix, toolLog: toolLog}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if toolLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("providesmod", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: completeImportTool(), Handler: s.handleCompleteImport},
		server.ServerTool{Tool: lookupModuleTool(), Handler: s.handleLookupModule},
		server.ServerTool{Tool: searchModulesTool(), Handler: s.handleSearchModules},
		server.ServerTool{Tool: listModulesTool(), Handler: s.handleListModules},
		server.ServerTool{Tool: rescanWorkspaceTool(), Handler: s.handleRescanWorkspace},
		server.ServerTool{Tool: indexStatsTool(), Handler: s.handleIndexStats},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
