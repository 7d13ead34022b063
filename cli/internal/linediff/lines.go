// Package linediff computes minimal, deterministic line-level edit scripts.
//
// Input is a pair of line sequences (see Split); output is a Script of Equal,
// Insert and Delete operations that covers both sequences exactly once and in
// order. Lines compare equal iff their text, with the line terminator removed,
// is byte-identical; "\n" and "\r\n" files therefore diff as equal.
//
// The algorithm is Myers' O((N+M)D) difference algorithm in its linear-space
// (middle snake) form. Common prefixes are always consumed greedily before the
// search branches, so the same input always yields the same script.
package linediff

import (
	"strings"
	"unicode/utf8"

	"revdiff/cli/internal/erruser"
)

// Line is one line of a file: its 1-based index and its text with the line
// terminator removed.
type Line struct {
	Index int
	Text  string
}

// Split splits text into lines, stripping "\n" and "\r\n" terminators. A final
// line without a terminator is kept; a trailing terminator does not produce an
// extra empty line. Empty input yields no lines.
func Split(text string) []Line {
	if text == "" {
		return nil
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	lines := make([]Line, 0, n)
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		var s string
		if i < 0 {
			s, text = text, ""
		} else {
			s, text = text[:i], text[i+1:]
			s = strings.TrimSuffix(s, "\r")
		}
		lines = append(lines, Line{Index: len(lines) + 1, Text: s})
	}
	return lines
}

// SplitBytes is Split for raw blob content. It returns an ErrUTF8Decode error
// when data is not valid UTF-8; callers that classify content first (see
// package resolve) never hit that case.
func SplitBytes(data []byte) ([]Line, error) {
	if !utf8.Valid(data) {
		return nil, erruser.Wrap(erruser.ErrUTF8Decode, "File content is not valid UTF-8 text.", nil)
	}
	return Split(string(data)), nil
}

// Texts returns the text of each line.
func Texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// FromTexts builds lines from already-split text, numbering from 1.
func FromTexts(texts []string) []Line {
	out := make([]Line, len(texts))
	for i, s := range texts {
		out[i] = Line{Index: i + 1, Text: s}
	}
	return out
}
