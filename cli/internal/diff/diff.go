// Package diff turns a line edit script into annotated diff lines, in one of
// two shapes:
//
//   - Hunks (AssembleHunks): only changed regions plus bounded context, each
//     hunk preceded by a Header line "@@ -a,b +c,d @@".
//   - Complete (AssembleFull): every line of the new file, with removed lines
//     inlined where they used to be.
//
// # Line numbers
// Line numbers are 1-based. Zero means "none": Added lines have no old number,
// Removed lines have no new number, Header lines have neither. At the JSON
// boundary zero is written as null.
//
// # Binary and absent content
// Assemblers only see text. Callers map a missing side to an empty line
// sequence (so every line is Added or Removed) and report binary content via
// Result.Binary with no lines.
package diff

import (
	"encoding/json"
	"fmt"
)

// LineType is the kind of a diff line.
type LineType int

// Line types.
const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
	LineHeader
)

// String returns the wire name of the line type.
func (t LineType) String() string {
	switch t {
	case LineContext:
		return "context"
	case LineAdded:
		return "added"
	case LineRemoved:
		return "removed"
	case LineHeader:
		return "header"
	default:
		return "unknown"
	}
}

// Prefix returns the unified-diff prefix character for this line type.
func (t LineType) Prefix() string {
	switch t {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	case LineHeader:
		return ""
	default:
		return " "
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t LineType) MarshalText() ([]byte, error) {
	if t < LineContext || t > LineHeader {
		return nil, fmt.Errorf("unknown line type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *LineType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "context":
		*t = LineContext
	case "added":
		*t = LineAdded
	case "removed":
		*t = LineRemoved
	case "header":
		*t = LineHeader
	default:
		return fmt.Errorf("unknown line type %q", string(b))
	}
	return nil
}

// Line is one annotated line of a diff. For Header lines Content is the
// formatted hunk header.
type Line struct {
	OldLine int      // 0 if Added or Header
	NewLine int      // 0 if Removed or Header
	Content string   // line text without terminator
	Type    LineType // context, added, removed or header
}

// wireLine is the serialized shape of Line.
type wireLine struct {
	OldLineNumber *int     `json:"old_line_number"`
	NewLineNumber *int     `json:"new_line_number"`
	Content       string   `json:"content"`
	LineType      LineType `json:"line_type"`
}

// MarshalJSON writes the line with null for absent line numbers.
func (l Line) MarshalJSON() ([]byte, error) {
	w := wireLine{Content: l.Content, LineType: l.Type}
	if l.OldLine > 0 {
		n := l.OldLine
		w.OldLineNumber = &n
	}
	if l.NewLine > 0 {
		n := l.NewLine
		w.NewLineNumber = &n
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the serialized shape written by MarshalJSON.
func (l *Line) UnmarshalJSON(b []byte) error {
	var w wireLine
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*l = Line{Content: w.Content, Type: w.LineType}
	if w.OldLineNumber != nil {
		l.OldLine = *w.OldLineNumber
	}
	if w.NewLineNumber != nil {
		l.NewLine = *w.NewLineNumber
	}
	return nil
}

// String renders the line as it would appear in a unified diff.
func (l Line) String() string {
	return l.Type.Prefix() + l.Content
}

// Stats counts added and removed lines.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Result is the output of one diff computation.
type Result struct {
	Lines     []Line `json:"lines"`
	Binary    bool   `json:"binary"`     // at least one side is binary; Lines is empty
	OldAbsent bool   `json:"old_absent"` // path does not exist on the old side
	NewAbsent bool   `json:"new_absent"` // path does not exist on the new side
}

// Stats counts the Added and Removed lines of r.
func (r Result) Stats() Stats {
	var s Stats
	for _, l := range r.Lines {
		switch l.Type {
		case LineAdded:
			s.Added++
		case LineRemoved:
			s.Removed++
		}
	}
	return s
}

// lineOverhead approximates the per-line memory cost beyond the content bytes
// (struct fields plus string header).
const lineOverhead = 48

// Size estimates the memory held by r, for cache accounting.
func (r Result) Size() int64 {
	n := int64(64)
	for _, l := range r.Lines {
		n += int64(len(l.Content)) + lineOverhead
	}
	return n
}
