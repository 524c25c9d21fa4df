// Package completion turns a single line of source text plus a cursor
// offset into import-completion suggestions backed by the module registry.
//
// The line analysis is a small explicit state machine over raw text. It
// never parses JavaScript; it only answers "is the cursor inside the module
// path string of an import-from statement, and what has been typed so far".
package completion

import "strings"

// LineState classifies a line/cursor pair for import completion.
type LineState int

const (
	// LineStateNotAnImport: the line has no open import-from statement to
	// complete (no `import ` token, or no `from ` after it).
	LineStateNotAnImport LineState = iota

	// LineStateImportClosed: the import statement is already terminated by
	// a `;` before the cursor, so completion stays quiet.
	LineStateImportClosed

	// LineStateScanningModulePath: the cursor sits where a module path is
	// being typed; a Context is available.
	LineStateScanningModulePath
)

// String returns a short label for logging.
func (s LineState) String() string {
	switch s {
	case LineStateImportClosed:
		return "import-closed"
	case LineStateScanningModulePath:
		return "scanning-module-path"
	default:
		return "not-an-import"
	}
}

const (
	importToken = "import "
	fromToken   = "from "
)

// Context is the per-keystroke completion context recovered from one line.
// It is constructed and consumed within a single request, never stored.
type Context struct {
	// BindingName is the trimmed text between `import ` and ` from`, e.g.
	// "Foo" in `import Foo from './foo'`. May be empty, and may be a
	// destructured list like "{ a, b }".
	BindingName string

	// QuoteChar is the opening quote nearest the cursor (`'` or `"`), or 0
	// when no quote precedes the cursor yet.
	QuoteChar byte

	// PrefixStart is the byte offset of the first character of Prefix
	// within the line: one past the opening quote, or the cursor itself
	// when no quote has been typed.
	PrefixStart int

	// Prefix is what the user has typed of the module path so far,
	// between the opening quote and the cursor.
	Prefix string
}

// ScanLine analyzes line at the given cursor byte offset and returns the
// completion context. ok is false when completion should not fire.
func ScanLine(line string, cursor int) (Context, bool) {
	state, ctx := ClassifyLine(line, cursor)
	return ctx, state == LineStateScanningModulePath
}

// ClassifyLine runs the line state machine. The returned Context is only
// meaningful in LineStateScanningModulePath.
//
// Guards, in order:
//  1. No `import ` token, or no `from ` at/after it → NotAnImport.
//  2. A `;` between the import token and the cursor → ImportClosed.
//  3. Otherwise the module path is being typed: the binding name is the
//     text strictly between `import ` and `from `, and the nearest quote
//     at or before the cursor opens the path string. With no quote before
//     the cursor the context degrades deterministically to an empty
//     prefix anchored at the cursor, so typing the quote immediately
//     starts a valid search.
func ClassifyLine(line string, cursor int) (LineState, Context) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(line) {
		cursor = len(line)
	}

	importIdx := strings.Index(line, importToken)
	if importIdx < 0 {
		return LineStateNotAnImport, Context{}
	}
	bindingStart := importIdx + len(importToken)

	fromIdx := -1
	if rel := strings.Index(line[importIdx:], fromToken); rel >= 0 {
		fromIdx = importIdx + rel
	}
	if fromIdx < bindingStart {
		// No from-clause after the import keyword.
		return LineStateNotAnImport, Context{}
	}

	if cursor > importIdx && strings.IndexByte(line[importIdx:cursor], ';') >= 0 {
		return LineStateImportClosed, Context{}
	}

	ctx := Context{
		BindingName: strings.TrimSpace(line[bindingStart:fromIdx]),
		PrefixStart: cursor,
	}

	single := strings.LastIndexByte(line[:cursor], '\'')
	double := strings.LastIndexByte(line[:cursor], '"')
	quoteIdx, quote := single, byte('\'')
	if double > single {
		quoteIdx, quote = double, '"'
	}
	if quoteIdx >= 0 {
		ctx.QuoteChar = quote
		ctx.PrefixStart = quoteIdx + 1
		ctx.Prefix = line[ctx.PrefixStart:cursor]
	}

	return LineStateScanningModulePath, ctx
}
