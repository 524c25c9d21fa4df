package completion

import (
	"strings"

	"github.com/bengsfort/providesmod/pkg/registry"
)

// Match filters names against a completion context.
//
// A name is suggested when it contains the typed prefix as a case-sensitive
// substring, or when the statement's binding name appears in it. Destructured
// `{ ... }` binding lists are ignored. An empty prefix contributes no
// substring matches on its own; without a usable binding the result is
// empty until the user types something.
//
// Names are returned in the order given, which for registry snapshots is
// insertion order. Duplicate names are kept: two files may declare the same
// module, and both declarations are real.
func Match(ctx Context, names []string) []string {
	binding, useBinding := bindingFilter(ctx)

	matched := make([]string, 0, len(names))
	for _, name := range names {
		if nameMatches(name, ctx.Prefix, binding, useBinding) {
			matched = append(matched, name)
		}
	}
	return matched
}

// MatchRecords is Match over full registry records, preserving the
// declaring path for suggestion detail.
func MatchRecords(ctx Context, records []registry.ModuleRecord) []registry.ModuleRecord {
	binding, useBinding := bindingFilter(ctx)

	matched := make([]registry.ModuleRecord, 0, len(records))
	for _, rec := range records {
		if nameMatches(rec.Name, ctx.Prefix, binding, useBinding) {
			matched = append(matched, rec)
		}
	}
	return matched
}

func bindingFilter(ctx Context) (string, bool) {
	// A `{` in the binding marks a destructured import list; individual
	// local names in it say nothing about the module's declared name.
	binding := ctx.BindingName
	return binding, binding != "" && !strings.Contains(binding, "{")
}

func nameMatches(name, prefix, binding string, useBinding bool) bool {
	if prefix != "" && strings.Contains(name, prefix) {
		return true
	}
	return useBinding && strings.Contains(name, binding)
}
