package indexer

import (
	"time"

	"github.com/bengsfort/providesmod/pkg/util"
)

// ScanOptions controls workspace file discovery.
type ScanOptions struct {
	// Include globs, matched against slash-separated paths relative to the
	// workspace root (doublestar syntax).
	Include []string

	// Exclude globs. A matching directory is pruned whole.
	Exclude []string

	// MaxFiles caps how many files one discovery pass may return. This
	// bounds scan breadth, not the registry's size afterwards.
	MaxFiles int
}

// DefaultScanOptions matches the conventional layout of a JavaScript
// workspace using @providesModule declarations.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include:  []string{"**/*.js", "**/*.jsx"},
		Exclude:  []string{"**/node_modules/**", "**/.git/**"},
		MaxFiles: 10000,
	}
}

// WatchOptions controls the file watcher.
type WatchOptions struct {
	// DebounceMs groups rapid change events per path; only the last event
	// inside the window triggers a reconcile. 0 means 200ms.
	DebounceMs int
}

// DefaultWatchOptions returns the standard debounce window.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{DebounceMs: 200}
}

// Config assembles everything an Indexer needs.
type Config struct {
	// RootDir is the absolute workspace root.
	RootDir string

	Scan  ScanOptions
	Watch WatchOptions

	// ReadCacheSize bounds the LRU cache of per-file declaration reads.
	// 0 means 2048 entries.
	ReadCacheSize int

	// Workers is the reconcile pool size for full scans. 0 auto-detects
	// via util.OptimalPoolSize.
	Workers int

	// Head bounds for declaration reads. Zero values use the
	// util.DefaultHeadReaderConfig limits.
	Head util.HeadReaderConfig
}

// DefaultConfig returns a ready-to-use config for the given root.
func DefaultConfig(rootDir string) Config {
	return Config{
		RootDir:       rootDir,
		Scan:          DefaultScanOptions(),
		Watch:         DefaultWatchOptions(),
		ReadCacheSize: 2048,
		Head:          util.DefaultHeadReaderConfig(),
	}
}

// ScanResult summarizes one full workspace scan.
type ScanResult struct {
	FilesDiscovered int   `json:"files_discovered"`
	CapHit          bool  `json:"cap_hit"`
	Added           int   `json:"added"`
	Renamed         int   `json:"renamed"`
	Removed         int   `json:"removed"`
	Unchanged       int   `json:"unchanged"`
	Failed          int   `json:"failed"`
	DurationMs      int64 `json:"duration_ms"`
}

// Stats is a point-in-time snapshot of indexer activity.
type Stats struct {
	Scans          int64 `json:"scans"`
	FilesScanned   int64 `json:"files_scanned"`
	Reconciles     int64 `json:"reconciles"`
	ReadCacheHits  int64 `json:"read_cache_hits"`
	ReadCacheMiss  int64 `json:"read_cache_misses"`
	ReadCacheSize  int   `json:"read_cache_size"`
	Evictions      int64 `json:"evictions"`
	WatcherEvents  int64 `json:"watcher_events"`
	LastScanLength int64 `json:"last_scan_ms"`
}

// declEntry is one read-cache slot: what the file declared the last time it
// was read, plus the stat fingerprint that read was valid for.
type declEntry struct {
	ModTime time.Time
	Size    int64
	Name    string
}
