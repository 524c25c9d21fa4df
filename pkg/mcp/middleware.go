package mcp

import (
	"context"
	"time"

	"github.com/bengsfort/providesmod/pkg/mcplog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// loggingMiddleware wraps every tool handler to append one JSONL entry per
// call. Installed only when the server was given a logger, so s.toolLog is
// never nil here.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			entry := mcplog.Entry{
				Ts:         start.UTC().Format(time.RFC3339),
				Tool:       req.Params.Name,
				Params:     mcplog.SanitizeParams(req.GetArguments()),
				DurationMs: time.Since(start).Milliseconds(),
			}
			entry.ResponseBytes = mcplog.ResponseBytes(result)
			entry.TokensEst = entry.ResponseBytes / 4
			if err != nil {
				msg := err.Error()
				entry.Error = &msg
			}
			_ = s.toolLog.Write(entry)

			return result, err
		}
	}
}
