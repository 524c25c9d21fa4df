package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bengsfort/providesmod/pkg/completion"
	"github.com/bengsfort/providesmod/pkg/registry"
)

// completionItemKindModule is the LSP CompletionItemKind for modules.
const completionItemKindModule = 9

func (s *Server) handleCompletion(msg *rpcMessage) error {
	var params completionParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	uri := canonicalURI(params.TextDocument.URI)

	s.mu.Lock()
	text, open := s.openDocs[uri]
	root := s.workspaceRoot
	s.mu.Unlock()

	if !open {
		return s.sendResponse(msg.ID, completionList{Items: []completionItem{}})
	}

	// Answer off the read loop so a slow round trip never stalls other
	// traffic, and so $/cancelRequest has something to cancel.
	ctx, cancel := context.WithCancel(s.baseCtx)
	id := string(msg.ID)
	s.addInflight(id, cancel)

	records := s.query.List(0)
	go func() {
		defer s.removeInflight(id)
		list := buildCompletionList(root, text, params.Position, records)
		if ctx.Err() != nil {
			// -32800: the client withdrew the request.
			_ = s.sendError(msg.ID, -32800, "request cancelled")
			return
		}
		_ = s.sendResponse(msg.ID, list)
	}()
	return nil
}

// buildCompletionList classifies the cursor's line and turns matching
// registry records into completion items. Item order follows record order,
// pinned via SortText so clients do not re-sort alphabetically.
func buildCompletionList(root, text string, pos position, records []registry.ModuleRecord) completionList {
	offset := offsetForPosition(text, pos)
	line, lineStart := lineAround(text, offset)
	cursor := offset - lineStart

	lineCtx, ok := completion.ScanLine(line, cursor)
	if !ok {
		return completionList{Items: []completionItem{}}
	}

	matched := completion.MatchRecords(lineCtx, records)
	editRange := lspRange{
		Start: position{Line: pos.Line, Character: utf16Len(line[:lineCtx.PrefixStart])},
		End:   pos,
	}

	items := make([]completionItem, 0, len(matched))
	for i, rec := range matched {
		items = append(items, completionItem{
			Label:    rec.Name,
			Kind:     completionItemKindModule,
			Detail:   displayPath(root, rec.Path),
			SortText: fmt.Sprintf("%04d", i),
			TextEdit: &textEdit{Range: editRange, NewText: rec.Name},
		})
	}
	return completionList{Items: items}
}

// displayPath shortens a record path to be workspace-relative for item
// detail. Paths outside the root stay absolute.
func displayPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
