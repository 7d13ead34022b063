package diff

import (
	"bytes"
	"fmt"

	sgdiff "github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// Patch describes one file's hunks for rendering as a unified diff.
type Patch struct {
	Path      string // repo-relative, forward slashes
	OldAbsent bool   // rendered as a new file
	NewAbsent bool   // rendered as a deleted file
	Binary    bool   // rendered as git's "Binary files ... differ" notice
	Hunks     []Hunk
}

// Unified renders p as a git-style unified patch ("diff --git" header, ---/+++
// names and @@ hunks). Line terminators are always "\n". A patch with no
// changes renders as empty output.
func (p Patch) Unified() ([]byte, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("patch path required")
	}
	if len(p.Hunks) == 0 && !p.Binary && !p.OldAbsent && !p.NewAbsent {
		return nil, nil
	}
	fd := &sgdiff.FileDiff{
		OrigName: "a/" + p.Path,
		NewName:  "b/" + p.Path,
		Extended: []string{fmt.Sprintf("diff --git a/%s b/%s", p.Path, p.Path)},
	}
	switch {
	case p.OldAbsent:
		fd.OrigName = devNull
		fd.Extended = append(fd.Extended, "new file mode 100644")
	case p.NewAbsent:
		fd.NewName = devNull
		fd.Extended = append(fd.Extended, "deleted file mode 100644")
	}
	if p.Binary {
		fd.Extended = append(fd.Extended, fmt.Sprintf("Binary files %s and %s differ", fd.OrigName, fd.NewName))
		return sgdiff.PrintFileDiff(fd)
	}
	for _, h := range p.Hunks {
		var body bytes.Buffer
		for _, l := range h.Lines {
			if l.Type == LineHeader {
				continue
			}
			body.WriteString(l.Type.Prefix())
			body.WriteString(l.Content)
			body.WriteByte('\n')
		}
		fd.Hunks = append(fd.Hunks, &sgdiff.Hunk{
			OrigStartLine: int32(h.OldStart),
			OrigLines:     int32(h.OldCount),
			NewStartLine:  int32(h.NewStart),
			NewLines:      int32(h.NewCount),
			Body:          body.Bytes(),
		})
	}
	return sgdiff.PrintFileDiff(fd)
}
