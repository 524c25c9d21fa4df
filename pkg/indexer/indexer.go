// Package indexer keeps the module registry synchronized with the files on
// disk. It owns workspace scanning, per-file reconciliation, the bounded
// read cache, and the file watcher that drives incremental updates.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bengsfort/providesmod/pkg/extractor"
	"github.com/bengsfort/providesmod/pkg/registry"
	"github.com/bengsfort/providesmod/pkg/util"
)

// Indexer drives the registry from file-system state.
//
// **Pipeline:**
//  1. Discovery - walk the workspace for candidate files (doublestar globs)
//  2. Reconciliation - read each file's head, extract the declared name,
//     and apply the add/rename/remove decision to the registry
//  3. Watching - fsnotify events repeat step 2 per changed file
//
// **Read cache:**
// An LRU of path → (mtime, size, declared name) skips re-reading files
// whose stat fingerprint is unchanged. The LRU bounds memory over long
// sessions; the registry itself is only bounded at scan time by the
// discovery cap.
//
// **Thread Safety:**
// Safe for concurrent use. Scans fan out through a worker pool, watcher
// callbacks arrive on timer goroutines, and completion reads hit the
// registry directly; the registry's own locking serializes mutations, and
// the LRU is internally synchronized.
type Indexer struct {
	config   Config
	registry *registry.Registry
	reader   util.HeadReader
	logger   *slog.Logger

	readCache *lru.Cache[string, *declEntry]

	watcher   *FileWatcher
	watcherMu sync.Mutex

	scans         atomic.Int64
	filesScanned  atomic.Int64
	reconciles    atomic.Int64
	readCacheHits atomic.Int64
	readCacheMiss atomic.Int64
	evictions     atomic.Int64
	lastScanMs    atomic.Int64
}

// New creates an Indexer for the workspace in config.RootDir.
func New(config Config, reg *registry.Registry, logger *slog.Logger) (*Indexer, error) {
	if config.RootDir == "" {
		return nil, fmt.Errorf("indexer: RootDir is required")
	}
	if config.ReadCacheSize <= 0 {
		config.ReadCacheSize = 2048
	}
	if config.Head.WindowBytes <= 0 {
		config.Head.WindowBytes = util.DefaultHeadWindowBytes
	}
	if config.Head.MaxLines <= 0 {
		config.Head.MaxLines = util.DefaultHeadMaxLines
	}
	if logger == nil {
		logger = slog.Default()
	}

	ix := &Indexer{
		config:   config,
		registry: reg,
		reader:   util.NewHeadReader(config.Head, logger),
		logger:   logger,
	}

	cache, err := lru.NewWithEvict(config.ReadCacheSize, func(key string, value *declEntry) {
		ix.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: create read cache: %w", err)
	}
	ix.readCache = cache

	logger.Info("indexer initialized",
		"root", config.RootDir,
		"read_cache_size", config.ReadCacheSize)
	return ix, nil
}

// Registry returns the backing registry.
func (ix *Indexer) Registry() *registry.Registry {
	return ix.registry
}

// ScanWorkspace runs one full scan: discover candidate files, reconcile
// each through the worker pool, and sweep out registry entries whose files
// the walk no longer found. Idempotent; safe to invoke repeatedly, e.g.
// from a manual rescan command.
func (ix *Indexer) ScanWorkspace(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	ix.scans.Add(1)

	ix.logger.Info("workspace scan started", "root", ix.config.RootDir)

	files, capHit, err := DiscoverFiles(ctx, ix.config.RootDir, ix.config.Scan, ix.logger)
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}

	result := &ScanResult{
		FilesDiscovered: len(files),
		CapHit:          capHit,
	}
	if capHit {
		ix.logger.Warn("discovery cap reached, workspace only partially scanned",
			"cap", ix.config.Scan.MaxFiles)
	}

	// Entries whose files the walk no longer sees are stale; reconcile
	// them away so a rescan is a true rebuild.
	discovered := make(map[string]bool, len(files))
	for _, f := range files {
		discovered[f] = true
	}
	for _, path := range ix.registry.Paths() {
		if !discovered[path] {
			ix.readCache.Remove(path)
			if ix.registry.Reconcile(path, "") == registry.OutcomeRemoved {
				result.Removed++
			}
		}
	}

	pool := newWorkerPool(ix.config.Workers, ix.ReconcileFile, ix.logger)
	pool.Start()
	defer pool.Stop()

	// Drain results concurrently with submission; submitting first can
	// fill both channel buffers and deadlock the pool.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range pool.Results() {
			switch {
			case res.Err != nil:
				result.Failed++
				ix.logger.Warn("reconcile failed", "path", res.Path, "error", res.Err)
			case res.Outcome == registry.OutcomeAdded:
				result.Added++
			case res.Outcome == registry.OutcomeRenamed:
				result.Renamed++
			case res.Outcome == registry.OutcomeRemoved:
				result.Removed++
			default:
				result.Unchanged++
			}
		}
	}()

	for i, file := range files {
		if err := pool.Submit(reconcileJob{Path: file, JobID: i}); err != nil {
			pool.FinishSubmitting()
			<-done
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
	}
	pool.FinishSubmitting()
	<-done

	ix.filesScanned.Add(int64(len(files)))
	result.DurationMs = time.Since(start).Milliseconds()
	ix.lastScanMs.Store(result.DurationMs)

	ix.logger.Info("workspace scan complete",
		"files", result.FilesDiscovered,
		"added", result.Added,
		"renamed", result.Renamed,
		"removed", result.Removed,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"duration_ms", result.DurationMs,
		"modules", ix.registry.Len())

	return result, nil
}

// ReconcileFile brings the registry entry for one path in line with the
// file's current content.
//
// A file that cannot be stat'd or read declares nothing: any cached entry
// for it is reconciled away and no error is surfaced (files routinely
// vanish between enumeration and read). The returned error is reserved for
// cancellation.
func (ix *Indexer) ReconcileFile(ctx context.Context, path string) (registry.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return registry.OutcomeNone, err
	}

	ix.reconciles.Add(1)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		ix.readCache.Remove(path)
		return ix.registry.Reconcile(path, ""), nil
	}

	if entry, ok := ix.readCache.Get(path); ok &&
		entry.Size == info.Size() && entry.ModTime.Equal(info.ModTime()) {
		ix.readCacheHits.Add(1)
		return ix.registry.Reconcile(path, entry.Name), nil
	}
	ix.readCacheMiss.Add(1)

	head, err := ix.reader.ReadHead(path)
	if err != nil {
		// Vanished or turned unreadable between stat and read.
		ix.readCache.Remove(path)
		return ix.registry.Reconcile(path, ""), nil
	}

	name := extractor.NameFromContentLimit(head, ix.config.Head.MaxLines)
	ix.readCache.Add(path, &declEntry{
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Name:    name,
	})

	return ix.registry.Reconcile(path, name), nil
}

// Matches reports whether path is a candidate file under this indexer's
// scan options. Callers that receive file events from outside the built-in
// watcher (an editor pushing watched-file notifications) use it to drop
// paths the scan would never have considered.
func (ix *Indexer) Matches(path string) bool {
	return PathMatches(ix.config.RootDir, ix.config.Scan, path)
}

// RemovePath drops a deleted file's entry without touching the disk.
func (ix *Indexer) RemovePath(path string) registry.Outcome {
	ix.readCache.Remove(path)
	return ix.registry.Reconcile(path, "")
}

// StartWatching begins incremental updates. Safe to call once; failure
// leaves the indexer scan-only and is returned for logging, never fatal.
func (ix *Indexer) StartWatching() error {
	ix.watcherMu.Lock()
	defer ix.watcherMu.Unlock()

	if ix.watcher != nil {
		return fmt.Errorf("indexer: watcher already running")
	}

	watcher, err := NewFileWatcher(ix, ix.config.Scan, ix.config.Watch, ix.logger)
	if err != nil {
		return fmt.Errorf("indexer: start watcher: %w", err)
	}
	if err := watcher.Start(ix.config.RootDir); err != nil {
		watcher.Stop()
		return fmt.Errorf("indexer: start watcher: %w", err)
	}

	ix.watcher = watcher
	return nil
}

// StopWatching halts incremental updates. Idempotent.
func (ix *Indexer) StopWatching() {
	ix.watcherMu.Lock()
	defer ix.watcherMu.Unlock()

	if ix.watcher != nil {
		ix.watcher.Stop()
		ix.watcher = nil
	}
}

// Stats returns an activity snapshot.
func (ix *Indexer) Stats() Stats {
	var watcherEvents int64
	ix.watcherMu.Lock()
	if ix.watcher != nil {
		watcherEvents = ix.watcher.EventsSeen()
	}
	ix.watcherMu.Unlock()

	return Stats{
		Scans:          ix.scans.Load(),
		FilesScanned:   ix.filesScanned.Load(),
		Reconciles:     ix.reconciles.Load(),
		ReadCacheHits:  ix.readCacheHits.Load(),
		ReadCacheMiss:  ix.readCacheMiss.Load(),
		ReadCacheSize:  ix.readCache.Len(),
		Evictions:      ix.evictions.Load(),
		WatcherEvents:  watcherEvents,
		LastScanLength: ix.lastScanMs.Load(),
	}
}

// Close stops watching and clears the read cache. The registry is left
// intact for callers that outlive the indexer.
func (ix *Indexer) Close() {
	ix.StopWatching()
	ix.readCache.Purge()
	ix.logger.Info("indexer closed")
}
