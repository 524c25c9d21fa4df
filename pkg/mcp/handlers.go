package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bengsfort/providesmod/pkg/completion"
	"github.com/bengsfort/providesmod/pkg/indexer"
	"github.com/bengsfort/providesmod/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
)

// suggestion is one completion candidate: a declared name plus the file
// declaring it.
type suggestion struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// completionResponse is the complete_import payload. State echoes the line
// classification so callers can tell "nothing matched" apart from "the
// cursor is not in a completable spot".
type completionResponse struct {
	State       string       `json:"state"`
	Binding     string       `json:"binding,omitempty"`
	Prefix      string       `json:"prefix,omitempty"`
	PrefixStart int          `json:"prefix_start"`
	Suggestions []suggestion `json:"suggestions"`
}

func (s *Server) handleCompleteImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	line, err := req.RequireString("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cursor := req.GetInt("cursor", len(line))

	state, lineCtx := completion.ClassifyLine(line, cursor)
	resp := completionResponse{State: state.String(), Suggestions: []suggestion{}}
	if state == completion.LineStateScanningModulePath {
		resp.Binding = lineCtx.BindingName
		resp.Prefix = lineCtx.Prefix
		resp.PrefixStart = lineCtx.PrefixStart
		for _, rec := range completion.MatchRecords(lineCtx, s.query.List(0)) {
			resp.Suggestions = append(resp.Suggestions, suggestion{Name: rec.Name, Path: rec.Path})
		}
	}
	return jsonResult(resp)
}

func (s *Server) handleLookupModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records := s.query.LookupName(name)
	if len(records) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("module not found: %s", name)), nil
	}
	return jsonResult(records)
}

func (s *Server) handleSearchModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records := s.query.Search(query)
	if len(records) == 0 {
		// An empty match set is an answer, not a failure.
		return mcp.NewToolResultText(fmt.Sprintf("no modules found matching %q", query)), nil
	}
	return jsonResult(records)
}

func (s *Server) handleListModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 0)
	return jsonResult(s.query.List(limit))
}

func (s *Server) handleRescanWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.indexer == nil {
		return mcp.NewToolResultError("rescan unavailable: server started without an indexer"), nil
	}
	result, err := s.indexer.ScanWorkspace(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
	}
	return jsonResult(result)
}

// statsResponse nests the two counter families so either can grow fields
// without colliding.
type statsResponse struct {
	Registry registry.Stats `json:"registry"`
	Indexer  *indexer.Stats `json:"indexer,omitempty"`
}

func (s *Server) handleIndexStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := statsResponse{Registry: s.query.Stats()}
	if s.indexer != nil {
		st := s.indexer.Stats()
		resp.Indexer = &st
	}
	return jsonResult(resp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
