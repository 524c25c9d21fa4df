package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bengsfort/providesmod/pkg/indexer"
	"github.com/bengsfort/providesmod/pkg/registry"
)

// printScanResult prints a human-readable scan summary to stdout.
func printScanResult(result *indexer.ScanResult, modules int) {
	fmt.Printf("Scanned %d files in %dms\n", result.FilesDiscovered, result.DurationMs)
	if result.CapHit {
		fmt.Println("  ! file cap reached, workspace only partially scanned")
	}
	fmt.Println()

	rows := []struct {
		label string
		count int
	}{
		{"added", result.Added},
		{"renamed", result.Renamed},
		{"removed", result.Removed},
		{"unchanged", result.Unchanged},
		{"failed", result.Failed},
	}
	for _, row := range rows {
		fmt.Printf("  %-10s %d\n", row.label, row.count)
	}

	fmt.Println()
	fmt.Printf("%d modules indexed\n", modules)
}

// printRecords renders records as a table with dynamic column widths,
// paths shown relative to root where possible.
func printRecords(root string, records []registry.ModuleRecord) {
	nameW := len("MODULE")
	pathW := len("PATH")
	rels := make([]string, len(records))
	for i, rec := range records {
		rels[i] = relPath(root, rec.Path)
		if len(rec.Name) > nameW {
			nameW = len(rec.Name)
		}
		if len(rels[i]) > pathW {
			pathW = len(rels[i])
		}
	}

	fmt.Printf("%-*s  %s\n", nameW, "MODULE", "PATH")
	fmt.Println(strings.Repeat("─", nameW+2+pathW))
	for i, rec := range records {
		fmt.Printf("%-*s  %s\n", nameW, rec.Name, rels[i])
	}
	fmt.Println()
	fmt.Printf("%d modules\n", len(records))
}

func relPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}
