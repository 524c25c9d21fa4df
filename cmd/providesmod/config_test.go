package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// --- Config loading tests ---

func TestLoadProjectConfig_Missing(t *testing.T) {
	cfg, err := loadProjectConfig(t.TempDir(), "")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadProjectConfig_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "providesmod.yaml"), `
scan:
  include:
    - "src/**/*.js"
  max_files: 500
watch:
  enabled: false
  debounce_ms: 50
log:
  level: debug
`)

	cfg, err := loadProjectConfig(dir, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"src/**/*.js"}, cfg.Scan.Include)
	assert.Equal(t, 500, cfg.Scan.MaxFiles)
	require.NotNil(t, cfg.Watch.Enabled)
	assert.False(t, *cfg.Watch.Enabled)
	assert.Equal(t, 50, cfg.Watch.DebounceMs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadProjectConfig_HiddenFallback(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, ".providesmod.yaml"), "scan:\n  max_files: 7\n")

	cfg, err := loadProjectConfig(dir, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 7, cfg.Scan.MaxFiles)
}

func TestLoadProjectConfig_PrefersVisibleFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "providesmod.yaml"), "scan:\n  max_files: 1\n")
	writeConfig(t, filepath.Join(dir, ".providesmod.yaml"), "scan:\n  max_files: 2\n")

	cfg, err := loadProjectConfig(dir, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Scan.MaxFiles)
}

func TestLoadProjectConfig_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "elsewhere.yaml")
	writeConfig(t, path, "cache:\n  read_cache_size: 64\n")

	cfg, err := loadProjectConfig(t.TempDir(), path)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 64, cfg.Cache.ReadCacheSize)
}

func TestLoadProjectConfig_ExplicitMissing(t *testing.T) {
	_, err := loadProjectConfig(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadProjectConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "providesmod.yaml"), "scan: [not\n")

	_, err := loadProjectConfig(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

// --- Indexer config overlay tests ---

func TestBuildIndexerConfig_Defaults(t *testing.T) {
	config := buildIndexerConfig("/ws", nil)

	assert.Equal(t, "/ws", config.RootDir)
	assert.Equal(t, []string{"**/*.js", "**/*.jsx"}, config.Scan.Include)
	assert.Equal(t, 10000, config.Scan.MaxFiles)
	assert.Equal(t, 200, config.Watch.DebounceMs)
	assert.Equal(t, 2048, config.ReadCacheSize)
}

func TestBuildIndexerConfig_Overlay(t *testing.T) {
	cfg := &ProjectConfig{
		Scan: ScanSection{
			Include:   []string{"lib/**/*.js"},
			MaxFiles:  100,
			HeadLines: 3,
		},
		Watch: WatchSection{DebounceMs: 25},
		Cache: CacheSection{ReadCacheSize: 16},
	}

	config := buildIndexerConfig("/ws", cfg)

	assert.Equal(t, []string{"lib/**/*.js"}, config.Scan.Include)
	// Exclude was not set, so the default stays.
	assert.Contains(t, config.Scan.Exclude, "**/node_modules/**")
	assert.Equal(t, 100, config.Scan.MaxFiles)
	assert.Equal(t, 3, config.Head.MaxLines)
	assert.Equal(t, 25, config.Watch.DebounceMs)
	assert.Equal(t, 16, config.ReadCacheSize)
}

func TestWatchEnabled(t *testing.T) {
	assert.True(t, watchEnabled(nil))
	assert.True(t, watchEnabled(&ProjectConfig{}))

	off := false
	assert.False(t, watchEnabled(&ProjectConfig{Watch: WatchSection{Enabled: &off}}))

	on := true
	assert.True(t, watchEnabled(&ProjectConfig{Watch: WatchSection{Enabled: &on}}))
}

// --- Flag helper tests ---

func TestFlagValue_Separate(t *testing.T) {
	assert.Equal(t, "/ws", flagValue([]string{"--root", "/ws"}, "root"))
}

func TestFlagValue_Equals(t *testing.T) {
	assert.Equal(t, "/ws", flagValue([]string{"--root=/ws"}, "root"))
}

func TestFlagValue_Absent(t *testing.T) {
	assert.Equal(t, "", flagValue([]string{"--json"}, "root"))
}

func TestHasFlag(t *testing.T) {
	assert.True(t, hasFlag([]string{"--root", "/ws", "--json"}, "json"))
	assert.False(t, hasFlag([]string{"--root", "/ws"}, "json"))
}

func TestFirstPositional_SkipsFlagValues(t *testing.T) {
	assert.Equal(t, "AppHeader", firstPositional([]string{"--root", "/ws", "AppHeader"}))
	assert.Equal(t, "AppHeader", firstPositional([]string{"AppHeader", "--json"}))
	assert.Equal(t, "AppHeader", firstPositional([]string{"--root=/ws", "AppHeader"}))
	assert.Equal(t, "", firstPositional([]string{"--root", "/ws", "--json"}))
}
