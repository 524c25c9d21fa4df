package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengsfort/providesmod/pkg/registry"
	"github.com/bengsfort/providesmod/pkg/util"
)

func newTestIndexer(t *testing.T, config Config) (*Indexer, *registry.Registry) {
	t.Helper()
	reg := registry.New(util.NopLogger())
	ix, err := New(config, reg, util.NopLogger())
	require.NoError(t, err)
	t.Cleanup(ix.Close)
	return ix, reg
}

// populateWorkspace lays out three declared modules, one plain file, and a
// node_modules decoy that the default excludes must keep out.
func populateWorkspace(t *testing.T, root string) {
	t.Helper()
	writeFile(t, root, "src/components/AppHeader.js", "// @providesModule AppHeader\nexport default {};\n")
	writeFile(t, root, "src/components/AppFooter.js", "// @providesModule AppFooter\nexport default {};\n")
	writeFile(t, root, "src/styles/colors.js", "/* @providesModule colors */\nmodule.exports = {};\n")
	writeFile(t, root, "src/plain.js", "export const x = 1;\n")
	writeFile(t, root, "node_modules/dep/index.js", "// @providesModule Dep\nmodule.exports = {};\n")
}

// touch pushes the file's mtime forward so the stat fingerprint changes even
// when a rewrite lands within the filesystem's timestamp granularity.
func touch(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
}

func TestNewRequiresRoot(t *testing.T) {
	reg := registry.New(util.NopLogger())
	_, err := New(Config{}, reg, util.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RootDir")
}

func TestNewNormalizesZeroValues(t *testing.T) {
	reg := registry.New(util.NopLogger())
	ix, err := New(Config{RootDir: t.TempDir()}, reg, util.NopLogger())
	require.NoError(t, err)
	defer ix.Close()

	assert.Equal(t, 2048, ix.config.ReadCacheSize)
	assert.Equal(t, util.DefaultHeadMaxLines, ix.config.Head.MaxLines)
	assert.Equal(t, util.DefaultHeadWindowBytes, ix.config.Head.WindowBytes)
}

func TestScanWorkspaceBuildsRegistry(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)
	ix, reg := newTestIndexer(t, DefaultConfig(root))

	result, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.FilesDiscovered, "node_modules must be pruned")
	assert.False(t, result.CapHit)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 1, result.Unchanged, "the undeclared file counts as unchanged")
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 0, result.Failed)

	assert.ElementsMatch(t, []string{"AppHeader", "AppFooter", "colors"}, reg.Names())
}

func TestScanWorkspaceIdempotent(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)
	ix, reg := newTestIndexer(t, DefaultConfig(root))

	_, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	second, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 0, second.Renamed)
	assert.Equal(t, 0, second.Removed)
	assert.Equal(t, 4, second.Unchanged)
	assert.Equal(t, 3, reg.Len())

	// The second pass should be answered entirely from cached fingerprints.
	stats := ix.Stats()
	assert.Equal(t, int64(4), stats.ReadCacheHits)
	assert.Equal(t, int64(4), stats.ReadCacheMiss)
}

func TestScanWorkspaceSweepsStaleEntries(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)
	ix, reg := newTestIndexer(t, DefaultConfig(root))

	_, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, reg.Len())

	footer := filepath.Join(root, "src", "components", "AppFooter.js")
	require.NoError(t, os.Remove(footer))

	result, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 2, reg.Len())
	assert.NotContains(t, reg.Names(), "AppFooter")
}

func TestScanWorkspaceDetectsRename(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)
	ix, reg := newTestIndexer(t, DefaultConfig(root))

	_, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "src/styles/colors.js", "// @providesModule palette\nmodule.exports = { theme: true };\n")

	result, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Renamed)
	assert.Contains(t, reg.Names(), "palette")
	assert.NotContains(t, reg.Names(), "colors")
}

func TestScanWorkspaceCapHit(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)

	config := DefaultConfig(root)
	config.Scan.MaxFiles = 2
	ix, reg := newTestIndexer(t, config)

	result, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	assert.True(t, result.CapHit)
	assert.Equal(t, 2, result.FilesDiscovered)
	assert.LessOrEqual(t, reg.Len(), 2)
}

func TestScanWorkspaceCancelledContext(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)
	ix, _ := newTestIndexer(t, DefaultConfig(root))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.ScanWorkspace(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcileFileAddRenameRemove(t *testing.T) {
	root := t.TempDir()
	ix, reg := newTestIndexer(t, DefaultConfig(root))
	path := writeFile(t, root, "Widget.js", "// @providesModule Widget\nexport default {};\n")

	outcome, err := ix.ReconcileFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeAdded, outcome)

	writeFile(t, root, "Widget.js", "// @providesModule WidgetV2\nexport default {};\n")
	touch(t, path)
	outcome, err = ix.ReconcileFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeRenamed, outcome)

	writeFile(t, root, "Widget.js", "export default {};\n")
	touch(t, path)
	outcome, err = ix.ReconcileFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeRemoved, outcome)
	assert.Equal(t, 0, reg.Len())
}

func TestReconcileFileMissingPathIsNotAnError(t *testing.T) {
	root := t.TempDir()
	ix, _ := newTestIndexer(t, DefaultConfig(root))

	outcome, err := ix.ReconcileFile(context.Background(), root+"/never-existed.js")
	require.NoError(t, err)
	assert.Equal(t, registry.OutcomeNone, outcome)
}

func TestReconcileFileCancelledContext(t *testing.T) {
	root := t.TempDir()
	ix, _ := newTestIndexer(t, DefaultConfig(root))
	path := writeFile(t, root, "Widget.js", "// @providesModule Widget\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := ix.ReconcileFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, registry.OutcomeNone, outcome)
}

func TestReconcileFileCachesByFingerprint(t *testing.T) {
	root := t.TempDir()
	ix, _ := newTestIndexer(t, DefaultConfig(root))
	path := writeFile(t, root, "Widget.js", "// @providesModule Widget\nexport default {};\n")

	_, err := ix.ReconcileFile(context.Background(), path)
	require.NoError(t, err)
	_, err = ix.ReconcileFile(context.Background(), path)
	require.NoError(t, err)

	stats := ix.Stats()
	assert.Equal(t, int64(1), stats.ReadCacheHits)
	assert.Equal(t, int64(1), stats.ReadCacheMiss)

	// A changed fingerprint forces a re-read.
	touch(t, path)
	_, err = ix.ReconcileFile(context.Background(), path)
	require.NoError(t, err)

	stats = ix.Stats()
	assert.Equal(t, int64(1), stats.ReadCacheHits)
	assert.Equal(t, int64(2), stats.ReadCacheMiss)
}

func TestReadCacheEvictionsCounted(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)

	config := DefaultConfig(root)
	config.ReadCacheSize = 2
	ix, _ := newTestIndexer(t, config)

	_, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	stats := ix.Stats()
	assert.Equal(t, 2, stats.ReadCacheSize)
	assert.Equal(t, int64(2), stats.Evictions, "4 cached reads into 2 slots evict 2")
}

func TestRemovePath(t *testing.T) {
	root := t.TempDir()
	ix, reg := newTestIndexer(t, DefaultConfig(root))
	path := writeFile(t, root, "Widget.js", "// @providesModule Widget\n")

	_, err := ix.ReconcileFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	assert.Equal(t, registry.OutcomeRemoved, ix.RemovePath(path))
	assert.Equal(t, 0, reg.Len())

	assert.Equal(t, registry.OutcomeNone, ix.RemovePath(path))
}

func TestMatches(t *testing.T) {
	root := t.TempDir()
	ix, _ := newTestIndexer(t, DefaultConfig(root))

	assert.True(t, ix.Matches(root+"/src/App.js"))
	assert.True(t, ix.Matches(root+"/App.jsx"))
	assert.False(t, ix.Matches(root+"/src/App.ts"))
	assert.False(t, ix.Matches(root+"/node_modules/dep/index.js"))
	assert.False(t, ix.Matches(root+"/.git/hooks/pre-commit.js"))
}

func TestStatsSnapshot(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)
	ix, _ := newTestIndexer(t, DefaultConfig(root))

	result, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)

	stats := ix.Stats()
	assert.Equal(t, int64(1), stats.Scans)
	assert.Equal(t, int64(4), stats.FilesScanned)
	assert.Equal(t, int64(4), stats.Reconciles)
	assert.Equal(t, 4, stats.ReadCacheSize)
	assert.Equal(t, result.DurationMs, stats.LastScanLength)
	assert.Equal(t, int64(0), stats.WatcherEvents)
}

func TestCloseLeavesRegistryIntact(t *testing.T) {
	root := t.TempDir()
	populateWorkspace(t, root)
	ix, reg := newTestIndexer(t, DefaultConfig(root))

	_, err := ix.ScanWorkspace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, reg.Len())

	ix.Close()

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, 0, ix.Stats().ReadCacheSize)
}

// ===== BENCHMARKS =====

func BenchmarkScanWorkspace(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 200; i++ {
		path := fmt.Sprintf("%s/mod%03d.js", root, i)
		content := fmt.Sprintf("// @providesModule Mod%03d\nexport default {};\n", i)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			b.Fatal(err)
		}
	}

	reg := registry.New(util.NopLogger())
	ix, err := New(DefaultConfig(root), reg, util.NopLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer ix.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ix.ScanWorkspace(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReconcileFileCached(b *testing.B) {
	root := b.TempDir()
	path := root + "/Widget.js"
	if err := os.WriteFile(path, []byte("// @providesModule Widget\nexport default {};\n"), 0o644); err != nil {
		b.Fatal(err)
	}

	reg := registry.New(util.NopLogger())
	ix, err := New(DefaultConfig(root), reg, util.NopLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer ix.Close()

	if _, err := ix.ReconcileFile(context.Background(), path); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ix.ReconcileFile(context.Background(), path); err != nil {
			b.Fatal(err)
		}
	}
}
