package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bengsfort/providesmod/pkg/indexer"
	"github.com/bengsfort/providesmod/pkg/lsp"
	mcpserver "github.com/bengsfort/providesmod/pkg/mcp"
	"github.com/bengsfort/providesmod/pkg/mcplog"
	"github.com/bengsfort/providesmod/pkg/registry"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "scan":
		runScan(args)
	case "query":
		runQuery(args)
	case "serve":
		runServe(args)
	case "lsp":
		runLSP(args)
	case "setup":
		runSetup(args)
	case "version":
		fmt.Printf("providesmod %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// session bundles the pieces the one-shot commands share: a resolved root,
// the file config (nil when absent), and an indexer wired to a fresh registry.
type session struct {
	root    string
	config  *ProjectConfig
	indexer *indexer.Indexer
	query   *registry.QueryService
}

func newSession(args []string) (*session, error) {
	root, cfg, logger, err := loadEnvironment(args)
	if err != nil {
		return nil, err
	}
	reg := registry.New(logger)
	ix, err := indexer.New(buildIndexerConfig(root, cfg), reg, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		root:    root,
		config:  cfg,
		indexer: ix,
		query:   registry.NewQueryService(reg),
	}, nil
}

func runScan(args []string) {
	s, err := newSession(args)
	if err != nil {
		fatal(err)
	}
	defer s.indexer.Close()

	result, err := s.indexer.ScanWorkspace(context.Background())
	if err != nil {
		fatal(err)
	}
	if hasFlag(args, "json") {
		printJSON(result)
		return
	}
	printScanResult(result, s.query.Stats().Modules)
}

func runQuery(args []string) {
	name := firstPositional(args)
	s, err := newSession(args)
	if err != nil {
		fatal(err)
	}
	defer s.indexer.Close()

	if _, err := s.indexer.ScanWorkspace(context.Background()); err != nil {
		fatal(err)
	}

	var records []registry.ModuleRecord
	if name == "" {
		records = s.query.List(0)
	} else {
		// Exact name first; fall back to a substring search so
		// `query head` still surfaces AppHeader.
		records = s.query.LookupName(name)
		if len(records) == 0 {
			records = s.query.Search(name)
		}
	}

	if hasFlag(args, "json") {
		printJSON(records)
		return
	}
	if len(records) == 0 {
		fmt.Printf("no modules found matching %q\n", name)
		os.Exit(1)
	}
	printRecords(s.root, records)
}

func runServe(args []string) {
	s, err := newSession(args)
	if err != nil {
		fatal(err)
	}
	defer s.indexer.Close()

	// Fill the registry before the first tool call can arrive.
	if _, err := s.indexer.ScanWorkspace(context.Background()); err != nil {
		fatal(err)
	}
	if watchEnabled(s.config) {
		if err := s.indexer.StartWatching(); err != nil {
			fmt.Fprintf(os.Stderr, "watcher unavailable, continuing scan-only: %v\n", err)
		}
	}

	logPath := flagValue(args, "log-file")
	if logPath == "" && s.config != nil {
		logPath = s.config.Log.MCPLogFile
	}
	toolLog, err := mcplog.NewLogger(logPath)
	if err != nil {
		fatal(err)
	}
	if toolLog != nil {
		defer toolLog.Close()
	}

	srv := mcpserver.NewServer(s.query, s.indexer, toolLog)
	if err := srv.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func runLSP(args []string) {
	root, cfg, logger, err := loadEnvironment(args)
	if err != nil {
		fatal(err)
	}
	// The indexer is created on initialize, once the client names a root;
	// the config root is only the fallback.
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Indexer:      buildIndexerConfig(root, cfg),
		WatchEnabled: watchEnabled(cfg),
		Logger:       logger,
	})
	if err := server.Run(context.Background()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return
		}
		fmt.Fprintf(os.Stderr, "lsp error: %v\n", err)
		os.Exit(1)
	}
}

// flagValue scans args for "--name value" or "--name=value".
func flagValue(args []string, name string) string {
	prefix := "--" + name + "="
	for i, arg := range args {
		if arg == "--"+name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
	}
	return ""
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		if arg == "--"+name {
			return true
		}
	}
	return false
}

// firstPositional returns the first argument that is not a flag or the
// value of a value-taking flag.
func firstPositional(args []string) string {
	skip := false
	for _, arg := range args {
		if skip {
			skip = false
			continue
		}
		if strings.HasPrefix(arg, "--") {
			skip = !strings.Contains(arg, "=") && flagTakesValue(arg)
			continue
		}
		return arg
	}
	return ""
}

func flagTakesValue(flag string) bool {
	switch strings.TrimPrefix(flag, "--") {
	case "root", "config", "log-file":
		return true
	}
	return false
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "providesmod: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage: providesmod <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scan       Scan the workspace and print an index summary")
	fmt.Println("  query      Look up modules by declared name")
	fmt.Println("  serve      Start the MCP server on stdio")
	fmt.Println("  lsp        Start the language server on stdio")
	fmt.Println("  setup      Register the MCP server with detected AI agents")
	fmt.Println("  version    Print version")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --root <dir>       Workspace root (default: current directory)")
	fmt.Println("  --config <file>    Config file (default: <root>/providesmod.yaml)")
	fmt.Println("  --log-file <file>  JSONL tool-call log for serve")
	fmt.Println("  --json             JSON output for scan and query")
	fmt.Println("  --auto             Non-interactive setup with defaults")
}
