package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bengsfort/providesmod/pkg/indexer"
	"github.com/bengsfort/providesmod/pkg/util"
)

// ProjectConfig holds the contents of providesmod.yaml.
type ProjectConfig struct {
	Scan  ScanSection  `yaml:"scan"`
	Watch WatchSection `yaml:"watch"`
	Cache CacheSection `yaml:"cache"`
	Log   LogSection   `yaml:"log"`
}

type ScanSection struct {
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`
	MaxFiles  int      `yaml:"max_files"`
	HeadLines int      `yaml:"head_lines"`
}

type WatchSection struct {
	// Enabled is a pointer so an absent key means "on" while an explicit
	// `enabled: false` means off.
	Enabled    *bool `yaml:"enabled"`
	DebounceMs int   `yaml:"debounce_ms"`
}

type CacheSection struct {
	ReadCacheSize int `yaml:"read_cache_size"`
}

type LogSection struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	MCPLogFile string `yaml:"mcp_log_file"`
}

// loadProjectConfig reads the project config, applying the fallback chain:
//  1. Explicit --config flag value (an error if missing)
//  2. <root>/providesmod.yaml
//  3. <root>/.providesmod.yaml
//
// Returns nil (no error) when no file exists and none was requested.
func loadProjectConfig(root, explicit string) (*ProjectConfig, error) {
	var candidates []string
	if explicit != "" {
		candidates = []string{explicit}
	} else {
		candidates = []string{
			filepath.Join(root, "providesmod.yaml"),
			filepath.Join(root, ".providesmod.yaml"),
		}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &cfg, nil
	}

	if explicit != "" {
		return nil, fmt.Errorf("config file not found: %s", explicit)
	}
	return nil, nil
}

// buildIndexerConfig overlays the file config onto the defaults for root.
// Absent keys keep their default, so a config file only names what it changes.
func buildIndexerConfig(root string, cfg *ProjectConfig) indexer.Config {
	config := indexer.DefaultConfig(root)
	if cfg == nil {
		return config
	}
	if len(cfg.Scan.Include) > 0 {
		config.Scan.Include = cfg.Scan.Include
	}
	if len(cfg.Scan.Exclude) > 0 {
		config.Scan.Exclude = cfg.Scan.Exclude
	}
	if cfg.Scan.MaxFiles > 0 {
		config.Scan.MaxFiles = cfg.Scan.MaxFiles
	}
	if cfg.Scan.HeadLines > 0 {
		config.Head.MaxLines = cfg.Scan.HeadLines
	}
	if cfg.Watch.DebounceMs > 0 {
		config.Watch.DebounceMs = cfg.Watch.DebounceMs
	}
	if cfg.Cache.ReadCacheSize > 0 {
		config.ReadCacheSize = cfg.Cache.ReadCacheSize
	}
	return config
}

// watchEnabled reports whether the watcher should run. Defaults to on.
func watchEnabled(cfg *ProjectConfig) bool {
	if cfg == nil || cfg.Watch.Enabled == nil {
		return true
	}
	return *cfg.Watch.Enabled
}

func buildLogger(cfg *ProjectConfig) *slog.Logger {
	lc := util.DefaultLoggerConfig()
	if cfg != nil {
		if cfg.Log.Level != "" {
			lc.Level = util.LogLevel(cfg.Log.Level)
		}
		if cfg.Log.Format != "" {
			lc.Format = util.LogFormat(cfg.Log.Format)
		}
	}
	return util.NewLogger(lc)
}

// loadEnvironment resolves the workspace root, loads the project config,
// and builds the logger every command starts from.
func loadEnvironment(args []string) (string, *ProjectConfig, *slog.Logger, error) {
	root := flagValue(args, "root")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, nil, err
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", nil, nil, err
	}

	cfg, err := loadProjectConfig(root, flagValue(args, "config"))
	if err != nil {
		return "", nil, nil, err
	}
	return root, cfg, buildLogger(cfg), nil
}
