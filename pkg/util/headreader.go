// HeadReader provides bounded reads of a file's leading lines using
// memory-mapped I/O.
//
// Declaration scanning only ever looks at the first few lines of a file,
// so mapping the file and copying out the head touches at most one or two
// pages no matter how large the file is. Files that cannot be mapped
// (empty files, special files, exotic filesystems) fall back to a plain
// bounded read.
package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
)

// HeadReader reads the leading lines of files.
//
// Thread-safe: no shared mutable state beyond atomic counters, so
// concurrent goroutines may read different files simultaneously.
type HeadReader interface {
	// ReadHead returns a copy of the file's head: at most MaxLines lines,
	// examined within the first WindowBytes of the file. The returned
	// slice is owned by the caller.
	//
	// Returns an error if the file cannot be opened or read. A readable
	// empty file yields an empty head and no error.
	ReadHead(path string) ([]byte, error)

	// Stats returns counters for observability.
	Stats() HeadReaderStats
}

// HeadReaderConfig controls how much of a file the reader examines.
type HeadReaderConfig struct {
	// WindowBytes caps how many leading bytes are examined while looking
	// for line breaks. Guards against files whose first "lines" are
	// megabytes of minified source. 0 means DefaultHeadWindowBytes.
	WindowBytes int

	// MaxLines is the number of leading lines the head keeps.
	// 0 means DefaultHeadMaxLines.
	MaxLines int
}

const (
	// DefaultHeadWindowBytes comfortably covers any sane leading comment
	// block while keeping worst-case copies small.
	DefaultHeadWindowBytes = 64 * 1024

	// DefaultHeadMaxLines matches the declaration scanning window.
	DefaultHeadMaxLines = 5
)

// DefaultHeadReaderConfig returns the standard bounds.
func DefaultHeadReaderConfig() HeadReaderConfig {
	return HeadReaderConfig{
		WindowBytes: DefaultHeadWindowBytes,
		MaxLines:    DefaultHeadMaxLines,
	}
}

// HeadReaderStats captures reader activity.
type HeadReaderStats struct {
	Reads         int64 `json:"reads"`
	MmapFallbacks int64 `json:"mmap_fallbacks"`
	Failures      int64 `json:"failures"`
}

type headReader struct {
	config HeadReaderConfig
	logger *slog.Logger

	reads         atomic.Int64
	mmapFallbacks atomic.Int64
	failures      atomic.Int64
}

// NewHeadReader creates a HeadReader with the given bounds. A nil logger
// falls back to slog.Default().
func NewHeadReader(config HeadReaderConfig, logger *slog.Logger) HeadReader {
	if config.WindowBytes <= 0 {
		config.WindowBytes = DefaultHeadWindowBytes
	}
	if config.MaxLines <= 0 {
		config.MaxLines = DefaultHeadMaxLines
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &headReader{config: config, logger: logger}
}

func (hr *headReader) ReadHead(path string) ([]byte, error) {
	hr.reads.Add(1)

	f, err := os.Open(path)
	if err != nil {
		hr.failures.Add(1)
		return nil, fmt.Errorf("headreader: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// Zero-length files cannot be mapped; neither can some special
		// files. A plain bounded read handles both.
		hr.mmapFallbacks.Add(1)
		hr.logger.Debug("mmap failed, using plain read", "path", path, "error", err)
		head, rerr := hr.readHeadPlain(f)
		if rerr != nil {
			hr.failures.Add(1)
			return nil, fmt.Errorf("headreader: read %s: %w", path, rerr)
		}
		return head, nil
	}
	defer data.Unmap()

	window := []byte(data)
	truncated := len(window) > hr.config.WindowBytes
	if truncated {
		window = window[:hr.config.WindowBytes]
	}
	// The mapping dies with Unmap; cutHead copies before that.
	return cutHead(window, hr.config.MaxLines, truncated), nil
}

func (hr *headReader) readHeadPlain(f *os.File) ([]byte, error) {
	// One extra byte tells truncation apart from an exact-window file.
	buf := make([]byte, hr.config.WindowBytes+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}

	truncated := n > hr.config.WindowBytes
	if truncated {
		n = hr.config.WindowBytes
	}
	return cutHead(buf[:n], hr.config.MaxLines, truncated), nil
}

func (hr *headReader) Stats() HeadReaderStats {
	return HeadReaderStats{
		Reads:         hr.reads.Load(),
		MmapFallbacks: hr.mmapFallbacks.Load(),
		Failures:      hr.failures.Load(),
	}
}

// cutHead copies at most maxLines lines out of window. When the window was
// truncated mid-file, a trailing partial line is dropped rather than
// surfaced half-read.
func cutHead(window []byte, maxLines int, truncated bool) []byte {
	end, seen := 0, 0
	for seen < maxLines {
		nl := bytes.IndexByte(window[end:], '\n')
		if nl < 0 {
			break
		}
		end += nl + 1
		seen++
	}
	if seen == maxLines {
		return append([]byte(nil), window[:end]...)
	}

	if truncated {
		// The final line continues past the window; only complete lines
		// are trustworthy.
		if last := bytes.LastIndexByte(window, '\n'); last >= 0 {
			return append([]byte(nil), window[:last+1]...)
		}
		return nil
	}
	return append([]byte(nil), window...)
}
