package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher keeps the registry current between full scans by reconciling
// files as they change on disk.
//
// **Event handling:**
//   - Write/Create on a matching file - debounced reconcile (re-reads the
//     file head at fire time, so rapid event bursts converge on the final
//     content)
//   - Remove/Rename on a matching file - debounced removal
//   - Create on a directory - the new subtree is registered and its
//     existing matching files are reconciled (covers dir moves and files
//     written before the watch took effect)
//   - Remove/Rename on a directory - every tracked entry under it is
//     reconciled away
//
// **Debouncing:**
// One timer per path; a newer event for the same path replaces the pending
// action, so the last event kind inside the window decides what runs.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	indexer *Indexer
	scan    ScanOptions
	options WatchOptions
	logger  *slog.Logger

	rootDir string

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup

	eventsSeen atomic.Int64
}

// NewFileWatcher creates a watcher that feeds the given indexer. The
// watcher is inert until Start.
func NewFileWatcher(ix *Indexer, scan ScanOptions, options WatchOptions, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if options.DebounceMs <= 0 {
		options.DebounceMs = DefaultWatchOptions().DebounceMs
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileWatcher{
		watcher:        watcher,
		indexer:        ix,
		scan:           scan,
		options:        options,
		logger:         logger,
		debounceTimers: make(map[string]*time.Timer),
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Start registers the workspace directory tree and begins processing
// events in the background.
func (fw *FileWatcher) Start(rootPath string) error {
	fw.rootDir = rootPath

	if err := fw.watchTree(rootPath); err != nil {
		return fmt.Errorf("register watches under %s: %w", rootPath, err)
	}

	fw.wg.Add(1)
	go fw.eventLoop()

	fw.logger.Info("file watcher started", "root", rootPath, "debounce_ms", fw.options.DebounceMs)
	return nil
}

// Stop halts event processing and cancels pending debounce timers.
// Idempotent; a reconcile already in flight finishes on its own.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		fw.cancel()

		fw.debounceMu.Lock()
		for _, timer := range fw.debounceTimers {
			timer.Stop()
		}
		fw.debounceTimers = make(map[string]*time.Timer)
		fw.debounceMu.Unlock()

		if err := fw.watcher.Close(); err != nil {
			fw.logger.Warn("close fsnotify watcher", "error", err)
		}
		fw.wg.Wait()
		fw.logger.Info("file watcher stopped")
	})
}

// EventsSeen returns how many raw file-system events the watcher has
// received since Start.
func (fw *FileWatcher) EventsSeen() int64 {
	return fw.eventsSeen.Load()
}

// watchTree registers dir and every non-excluded directory below it.
func (fw *FileWatcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees degrade to scan-only coverage.
			fw.logger.Warn("watch registration skipped", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && fw.isExcluded(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (fw *FileWatcher) eventLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.eventsSeen.Add(1)
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if fw.isExcluded(path) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			fw.addNewDirectory(path)
			return
		}
		if fw.matchesInclude(path) {
			fw.schedule(path, false)
		}

	case event.Op.Has(fsnotify.Write):
		if fw.matchesInclude(path) {
			fw.schedule(path, false)
		}

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if fw.matchesInclude(path) {
			fw.schedule(path, true)
			return
		}
		// Likely a directory: anything tracked below it is gone too.
		fw.removeSubtree(path)
	}
}

// addNewDirectory registers watches for a directory created after Start and
// reconciles matching files already inside it. Files can land in a new
// directory before its watch is active (dir moves, unpacked archives), so
// the catch-up walk closes that gap.
func (fw *FileWatcher) addNewDirectory(dir string) {
	if fw.isExcluded(dir) {
		return
	}

	fw.logger.Debug("watching new directory", "path", dir)
	if err := fw.watchTree(dir); err != nil {
		fw.logger.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !fw.isExcluded(path) && fw.matchesInclude(path) {
			fw.schedule(path, false)
		}
		return nil
	})
}

// removeSubtree reconciles away every tracked file under a removed
// directory. Platforms deliver one event for the directory itself, not for
// the files inside it.
func (fw *FileWatcher) removeSubtree(dir string) {
	prefix := dir + string(filepath.Separator)
	for _, tracked := range fw.indexer.Registry().Paths() {
		if strings.HasPrefix(tracked, prefix) {
			fw.schedule(tracked, true)
		}
	}
}

// schedule queues a debounced action for path. A newer event within the
// window replaces the pending one, so the last event kind wins.
func (fw *FileWatcher) schedule(path string, removal bool) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[path]; exists {
		timer.Stop()
	}

	fw.debounceTimers[path] = time.AfterFunc(
		time.Duration(fw.options.DebounceMs)*time.Millisecond,
		func() {
			fw.debounceMu.Lock()
			delete(fw.debounceTimers, path)
			fw.debounceMu.Unlock()

			if fw.ctx.Err() != nil {
				return
			}
			fw.fire(path, removal)
		},
	)
}

func (fw *FileWatcher) fire(path string, removal bool) {
	if removal {
		outcome := fw.indexer.RemovePath(path)
		fw.logger.Debug("watch removal applied", "path", path, "outcome", outcome.String())
		return
	}

	outcome, err := fw.indexer.ReconcileFile(fw.ctx, path)
	if err != nil {
		fw.logger.Debug("watch reconcile cancelled", "path", path, "error", err)
		return
	}
	fw.logger.Debug("watch reconcile applied", "path", path, "outcome", outcome.String())
}

// relPath converts an event path to the slash-separated workspace-relative
// form the scan globs are written against.
func (fw *FileWatcher) relPath(path string) string {
	rel, err := filepath.Rel(fw.rootDir, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func (fw *FileWatcher) matchesInclude(path string) bool {
	if len(fw.scan.Include) == 0 {
		return true
	}
	return matchesAny(fw.scan.Include, fw.relPath(path))
}

func (fw *FileWatcher) isExcluded(path string) bool {
	return matchesAny(fw.scan.Exclude, fw.relPath(path))
}
