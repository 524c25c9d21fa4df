// Package mcplog appends one JSONL record per MCP tool call, so agent
// sessions against the module index can be replayed and audited offline.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Entry is the schema of one logged tool call.
type Entry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	TokensEst     int            `json:"tokens_est"`
	Error         *string        `json:"error"`
}

// Logger writes entries to an append-only JSONL file. Safe for concurrent
// use; each Write emits exactly one line.
type Logger struct {
	mu   sync.Mutex
	path string
	f    *os.File
	enc  *json.Encoder
}

// NewLogger opens (creating parents as needed) the JSONL file at path.
// An empty path returns (nil, nil): a nil *Logger means logging is off,
// and callers are expected to skip the middleware entirely in that case.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open %s: %w", path, err)
	}
	return &Logger{path: path, f: f, enc: json.NewEncoder(f)}, nil
}

// Path returns the file this logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Write appends one entry. Callers typically drop the returned error: a
// failed log line must never fail the tool call it describes.
func (l *Logger) Write(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// shortStringMax is the longest string parameter value logged verbatim.
// Longer values (whole source lines, generated queries) are replaced by a
// "<key>_len" length entry so the log never accumulates user code.
const shortStringMax = 64

// SanitizeParams returns a copy of a tool call's arguments safe to log.
func SanitizeParams(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && len(s) > shortStringMax {
			out[k+"_len"] = len(s)
			continue
		}
		out[k] = v
	}
	return out
}

// ResponseBytes measures a result's serialized content size. A nil result
// or a marshal failure counts as zero.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}

// Now is the clock used for entry timestamps; replaceable in tests.
var Now = func() time.Time { return time.Now() }
