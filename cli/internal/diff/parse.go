package diff

import (
	"fmt"
	"regexp"
	"strconv"
)

// hunkHeaderRegex matches @@ -oldStart,oldCount +newStart,newCount @@ with the
// counts optional, as git omits ",1".
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseHeader parses a hunk header into its ranges. Omitted counts are 1.
func ParseHeader(header string) (oldStart, oldCount, newStart, newCount int, err error) {
	m := hunkHeaderRegex.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid hunk header %q", header)
	}
	num := func(s string) int {
		if s == "" {
			return 1
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	return num(m[1]), num(m[2]), num(m[3]), num(m[4]), nil
}

// Regroup rebuilds hunks from a flattened hunk-mode line sequence (see
// Flatten). It checks that each hunk's lines match the counts in its header.
// An empty sequence yields no hunks.
func Regroup(lines []Line) ([]Hunk, error) {
	var hunks []Hunk
	for _, l := range lines {
		if l.Type == LineHeader {
			oldStart, oldCount, newStart, newCount, err := ParseHeader(l.Content)
			if err != nil {
				return nil, err
			}
			hunks = append(hunks, Hunk{
				OldStart: oldStart,
				OldCount: oldCount,
				NewStart: newStart,
				NewCount: newCount,
				Header:   l.Content,
			})
			continue
		}
		if len(hunks) == 0 {
			return nil, fmt.Errorf("%s line before first hunk header", l.Type)
		}
		h := &hunks[len(hunks)-1]
		h.Lines = append(h.Lines, l)
	}
	for _, h := range hunks {
		var oldN, newN int
		for _, l := range h.Lines {
			switch l.Type {
			case LineContext:
				oldN++
				newN++
			case LineRemoved:
				oldN++
			case LineAdded:
				newN++
			}
		}
		if oldN != h.OldCount || newN != h.NewCount {
			return nil, fmt.Errorf("hunk %q has %d old and %d new lines", h.Header, oldN, newN)
		}
	}
	return hunks, nil
}
