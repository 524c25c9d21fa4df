// Package extractor recovers the module name a file declares through a
// leading @providesModule annotation comment.
//
// Extraction is deliberately line-oriented text matching, not a tokenizer:
// only the first few lines of a file are examined, and a declaration that
// spans lines or deviates from the `@providesModule Name` convention is not
// recognized. That is a documented limitation of the convention, not a bug.
package extractor

import "strings"

// AnnotationKeyword is the exact token a file uses to declare its module
// name. Matching is by whole-token equality, never substring.
const AnnotationKeyword = "@providesModule"

// HeadLineLimit is how many leading lines are examined for a declaration.
// Declarations conventionally live in the file's first comment block, so
// anything past this window is ignored.
const HeadLineLimit = 5

// NameFromContent extracts the declared module name from raw file content.
// Returns "" when the head of the file declares nothing. Trailing carriage
// returns are stripped so CRLF files behave like LF files.
func NameFromContent(content []byte) string {
	return NameFromContentLimit(content, HeadLineLimit)
}

// NameFromContentLimit is NameFromContent with an explicit line cap.
// A limit <= 0 falls back to HeadLineLimit.
func NameFromContentLimit(content []byte, limit int) string {
	if limit <= 0 {
		limit = HeadLineLimit
	}
	lines := strings.SplitN(string(content), "\n", limit+1)
	if len(lines) > limit {
		lines = lines[:limit]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return NameFromLinesLimit(lines, limit)
}

// NameFromLines scans at most HeadLineLimit lines, in order, and returns
// the first declared module name found, or "" if none.
//
// Per line: blank lines are skipped; the line is split on single spaces;
// lines with fewer than two tokens, or whose second token is the block
// comment closer `*/`, are skipped (the leading comment block has ended).
// A token exactly equal to AnnotationKeyword makes the line's final token
// the declared name. A keyword with no name after it is malformed and
// declares nothing; scanning continues on the next line.
func NameFromLines(lines []string) string {
	return NameFromLinesLimit(lines, HeadLineLimit)
}

// NameFromLinesLimit is NameFromLines with an explicit line cap.
// A limit <= 0 falls back to HeadLineLimit.
func NameFromLinesLimit(lines []string, limit int) string {
	if limit <= 0 {
		limit = HeadLineLimit
	}
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		if name, ok := nameFromLine(line); ok {
			return name
		}
	}
	return ""
}

func nameFromLine(line string) (string, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}

	tokens := strings.Split(line, " ")
	if len(tokens) < 2 || tokens[1] == "*/" {
		return "", false
	}

	last := tokens[len(tokens)-1]
	for i, tok := range tokens {
		if tok != AnnotationKeyword {
			continue
		}
		// Keyword as the final token, or nothing usable after it, is a
		// malformed declaration: the line declares nothing.
		if i == len(tokens)-1 || last == "" || last == AnnotationKeyword {
			return "", false
		}
		return last, true
	}
	return "", false
}
