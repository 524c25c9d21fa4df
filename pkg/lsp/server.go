// Package lsp serves import completion over the Language Server Protocol.
// The wire layer is hand-rolled Content-Length framing over stdio; document
// text lives in an in-memory overlay, and the module registry is kept fresh
// by the indexer's scan, its watcher, and client file notifications.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bengsfort/providesmod/pkg/indexer"
	"github.com/bengsfort/providesmod/pkg/registry"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// rescanCommand is the workspace/executeCommand name for a full rescan.
const rescanCommand = "providesmod.rescan"

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	// Indexer carries scan, watch and cache settings. Its RootDir is the
	// fallback workspace root when the client's initialize names none.
	Indexer indexer.Config

	// WatchEnabled starts the built-in file watcher after the initial scan.
	// Clients that push workspace/didChangeWatchedFiles can leave it off.
	WatchEnabled bool

	Logger *slog.Logger
}

// Server handles stdio JSON-RPC for import completion.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex

	mu                sync.Mutex
	openDocs          map[string]string
	versions          map[string]int
	inflight          map[string]context.CancelFunc
	workspaceRoot     string
	shutdownRequested bool

	indexerConfig indexer.Config
	watchEnabled  bool
	logger        *slog.Logger

	registry *registry.Registry
	query    *registry.QueryService
	indexer  *indexer.Indexer

	baseCtx context.Context
}

// NewServer constructs an LSP server. The registry exists from the first
// message, so completions racing initialization get empty results rather
// than errors.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := registry.New(logger)
	return &Server{
		in:            bufio.NewReader(in),
		out:           bufio.NewWriter(out),
		openDocs:      make(map[string]string),
		versions:      make(map[string]int),
		inflight:      make(map[string]context.CancelFunc),
		indexerConfig: opts.Indexer,
		watchEnabled:  opts.WatchEnabled,
		logger:        logger,
		registry:      reg,
		query:         registry.NewQueryService(reg),
		baseCtx:       context.Background(),
	}
}

// Run serves LSP requests until exit or a read failure.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.closeIndexer()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("discarding unparseable message", "error", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.startIndexing()
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "$/cancelRequest":
		return s.handleCancel(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "workspace/didChangeWatchedFiles":
		return s.handleDidChangeWatchedFiles(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root == "" {
		root = s.indexerConfig.RootDir
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	config := s.indexerConfig
	config.RootDir = root
	ix, err := indexer.New(config, s.registry, s.logger)
	if err != nil {
		// Stay up query-only; the registry just never fills.
		s.logger.Error("indexer init failed", "root", root, "error", err)
	}

	s.mu.Lock()
	s.workspaceRoot = root
	s.indexer = ix
	s.mu.Unlock()

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save:      saveOptions{IncludeText: true},
			},
			CompletionProvider: &completionOptions{
				TriggerCharacters: []string{";", "/", "'", `"`},
			},
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{rescanCommand},
			},
		},
		ServerInfo: &serverInfo{Name: "providesmod", Version: "0.1.0-dev"},
	}
	return s.sendResponse(msg.ID, result)
}

// startIndexing launches the initial scan in the background; the client is
// already free to send requests. Watcher startup failure downgrades the
// session to scan-only rather than killing it.
func (s *Server) startIndexing() {
	s.mu.Lock()
	ix := s.indexer
	s.mu.Unlock()
	if ix == nil {
		return
	}
	go func() {
		result, err := ix.ScanWorkspace(s.baseCtx)
		if err != nil {
			s.logger.Error("initial scan failed", "error", err)
			return
		}
		s.logger.Info("initial scan complete",
			"files", result.FilesDiscovered,
			"added", result.Added,
			"duration_ms", result.DurationMs)
		if s.watchEnabled {
			if err := ix.StartWatching(); err != nil {
				s.logger.Warn("watcher unavailable, continuing scan-only", "error", err)
			}
		}
	}()
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleCancel(msg *rpcMessage) error {
	var params cancelParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.mu.Lock()
	cancel := s.inflight[string(params.ID)]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.openDocs[uri] = params.TextDocument.Text
	s.versions[uri] = params.TextDocument.Version
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.openDocs[uri] = applyChanges(s.openDocs[uri], params.ContentChanges)
	s.versions[uri] = params.TextDocument.Version
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	if params.Text != nil {
		s.openDocs[uri] = *params.Text
	}
	ix := s.indexer
	s.mu.Unlock()

	// Disk matches the buffer now; re-read the declaration right away
	// instead of waiting out the watcher debounce.
	path := uriToPath(uri)
	if ix != nil && ix.Matches(path) {
		if _, err := ix.ReconcileFile(s.baseCtx, path); err != nil {
			s.logger.Warn("reconcile on save failed", "path", path, "error", err)
		}
	}
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.openDocs, uri)
	delete(s.versions, uri)
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidChangeWatchedFiles(msg *rpcMessage) error {
	var params didChangeWatchedFilesParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.mu.Lock()
	ix := s.indexer
	s.mu.Unlock()
	if ix == nil {
		return nil
	}
	for _, change := range params.Changes {
		path := uriToPath(change.URI)
		if path == "" || !ix.Matches(path) {
			continue
		}
		switch change.Type {
		case fileChangeDeleted:
			ix.RemovePath(path)
		case fileChangeCreated, fileChangeChanged:
			if _, err := ix.ReconcileFile(s.baseCtx, path); err != nil {
				s.logger.Warn("reconcile failed", "path", path, "error", err)
			}
		}
	}
	return nil
}

func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	if params.Command != rescanCommand {
		return s.sendError(msg.ID, -32601, fmt.Sprintf("unknown command %q", params.Command))
	}
	s.mu.Lock()
	ix := s.indexer
	s.mu.Unlock()
	if ix == nil {
		return s.sendError(msg.ID, -32603, "no workspace indexed")
	}
	go func() {
		result, err := ix.ScanWorkspace(s.baseCtx)
		if err != nil {
			_ = s.sendError(msg.ID, -32603, fmt.Sprintf("rescan failed: %v", err))
			return
		}
		_ = s.sendResponse(msg.ID, result)
	}()
	return nil
}

func (s *Server) addInflight(id string, cancel context.CancelFunc) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.inflight[id] = cancel
	s.mu.Unlock()
}

func (s *Server) removeInflight(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	cancel := s.inflight[id]
	delete(s.inflight, id)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Server) closeIndexer() {
	s.mu.Lock()
	ix := s.indexer
	s.indexer = nil
	s.mu.Unlock()
	if ix != nil {
		ix.Close()
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error":   rpcError{Code: code, Message: message},
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
