package diff

import (
	"fmt"

	"revdiff/cli/internal/linediff"
)

// DefaultContext is the number of context lines kept around each change.
const DefaultContext = 3

// Hunk is a contiguous region of changes plus bounded context.
type Hunk struct {
	OldStart int    // From @@ -X,...
	OldCount int    // From @@ -X,Y ...
	NewStart int    // From @@ ...,+X
	NewCount int    // From @@ ...,+X,Y
	Header   string // "@@ -X,Y +X,Y @@"
	Lines    []Line // Context, Added and Removed lines in file order
}

// FormatHeader formats a hunk header. A zero count means the hunk is empty on
// that side, and start is then the line after which the change applies.
func FormatHeader(oldStart, oldCount, newStart, newCount int) string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", oldStart, oldCount, newStart, newCount)
}

// AssembleHunks groups the changes of s into hunks with up to context lines of
// unchanged text on each side. Changes separated by at most 2*context
// unchanged lines share a hunk. Identical inputs produce no hunks. A negative
// context is treated as zero.
func AssembleHunks(oldLines, newLines []linediff.Line, s linediff.Script, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	full := AssembleFull(oldLines, newLines, s)

	var (
		hunks    []Hunk
		pos      int // lines of full already accounted for in the counters
		oldSeen  int
		newSeen  int
		prevStop int
	)
	advance := func(to int) {
		for ; pos < to; pos++ {
			switch full[pos].Type {
			case LineContext:
				oldSeen++
				newSeen++
			case LineRemoved:
				oldSeen++
			case LineAdded:
				newSeen++
			}
		}
	}

	i := 0
	for i < len(full) {
		if full[i].Type == LineContext {
			i++
			continue
		}
		start := i - context
		if start < prevStop {
			start = prevStop
		}

		// end is one past the last changed line of the hunk.
		end := i
		for {
			for end < len(full) && full[end].Type != LineContext {
				end++
			}
			next := end
			for next < len(full) && full[next].Type == LineContext {
				next++
			}
			if next < len(full) && next-end <= 2*context {
				end = next
				continue
			}
			break
		}
		stop := end + context
		if stop > len(full) {
			stop = len(full)
		}

		advance(start)
		h := Hunk{Lines: append([]Line(nil), full[start:stop]...)}
		for _, l := range h.Lines {
			switch l.Type {
			case LineContext:
				h.OldCount++
				h.NewCount++
			case LineRemoved:
				h.OldCount++
			case LineAdded:
				h.NewCount++
			}
		}
		h.OldStart = oldSeen
		if h.OldCount > 0 {
			h.OldStart++
		}
		h.NewStart = newSeen
		if h.NewCount > 0 {
			h.NewStart++
		}
		h.Header = FormatHeader(h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		hunks = append(hunks, h)

		prevStop = stop
		i = stop
	}
	return hunks
}

// Flatten renders hunks as a single line sequence: each hunk's Header line
// followed by its lines.
func Flatten(hunks []Hunk) []Line {
	n := 0
	for _, h := range hunks {
		n += len(h.Lines) + 1
	}
	out := make([]Line, 0, n)
	for _, h := range hunks {
		out = append(out, Line{Content: h.Header, Type: LineHeader})
		out = append(out, h.Lines...)
	}
	return out
}
