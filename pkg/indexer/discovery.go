package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DiscoverFiles walks the workspace and returns every file matching the
// scan options, in walk (lexical) order. The boolean reports whether the
// MaxFiles cap cut the walk short.
//
// Patterns are matched against slash-separated paths relative to rootDir.
// Excluded directories are pruned without descending. Unreadable
// directories are logged and skipped; they never fail the walk.
func DiscoverFiles(ctx context.Context, rootDir string, options ScanOptions, logger *slog.Logger) ([]string, bool, error) {
	for _, pattern := range options.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, false, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}
	for _, pattern := range options.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, false, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}

	var files []string
	capHit := false

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warn("walk error", "path", path, "error", err)
			return nil
		}

		relPath, rerr := filepath.Rel(rootDir, path)
		if rerr != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		for _, pattern := range options.Exclude {
			if matched, _ := doublestar.PathMatch(pattern, relPath); matched {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			return nil
		}

		// No include patterns means everything is a candidate.
		if len(options.Include) > 0 && !matchesAny(options.Include, relPath) {
			return nil
		}

		if options.MaxFiles > 0 && len(files) >= options.MaxFiles {
			capHit = true
			return fs.SkipAll
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("workspace walk: %w", err)
	}

	return files, capHit, nil
}

// PathMatches reports whether path passes the scan options: not excluded,
// and matched by at least one include pattern (an empty include list
// matches everything). Patterns are evaluated against the slash-separated
// path relative to rootDir.
func PathMatches(rootDir string, options ScanOptions, path string) bool {
	rel, err := filepath.Rel(rootDir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	if matchesAny(options.Exclude, rel) {
		return false
	}
	if len(options.Include) == 0 {
		return true
	}
	return matchesAny(options.Include, rel)
}

func matchesAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.PathMatch(pattern, relPath); matched {
			return true
		}
	}
	return false
}
