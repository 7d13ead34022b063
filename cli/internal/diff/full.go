package diff

import "revdiff/cli/internal/linediff"

// AssembleFull annotates every line of the new file and inlines removed old
// lines. Equal edits become Context lines, Inserts Added lines and Deletes
// Removed lines; since a script lists a change's Delete before its Insert,
// removed lines land immediately before the Added or Context lines that
// replace them.
//
// Invariant: dropping the Removed lines leaves NewLine = 1..len(newLines) in
// order, with Content equal to the new file's lines.
func AssembleFull(oldLines, newLines []linediff.Line, s linediff.Script) []Line {
	out := make([]Line, 0, len(newLines)+s.Deleted())
	for _, e := range s {
		switch e.Op {
		case linediff.OpEqual:
			for k := 0; k < e.New.Len(); k++ {
				out = append(out, Line{
					OldLine: e.Old.Start + k + 1,
					NewLine: e.New.Start + k + 1,
					Content: newLines[e.New.Start+k].Text,
					Type:    LineContext,
				})
			}
		case linediff.OpDelete:
			for i := e.Old.Start; i < e.Old.End; i++ {
				out = append(out, Line{OldLine: i + 1, Content: oldLines[i].Text, Type: LineRemoved})
			}
		case linediff.OpInsert:
			for j := e.New.Start; j < e.New.End; j++ {
				out = append(out, Line{NewLine: j + 1, Content: newLines[j].Text, Type: LineAdded})
			}
		}
	}
	return out
}
