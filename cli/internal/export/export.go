// Package export renders hunk-mode diffs as git-style unified patches and
// writes them to a local path or any URL the afs storage layer understands
// (file://, mem://, ...).
package export

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"revdiff/cli/internal/diff"
	"revdiff/cli/internal/erruser"
	"revdiff/cli/internal/resolve"
	"revdiff/cli/internal/trace"
)

// Source computes hunk-mode diffs. *engine.Engine implements it.
type Source interface {
	ComputeFileDiff(ctx context.Context, path, oldRef, newRef string) (diff.Result, error)
	RepoPath(path string) (resolve.RepoPath, error)
}

// Request selects what to export. Empty refs follow ComputeFileDiff's defaults.
type Request struct {
	Paths []string
	Old   string
	New   string
}

// Exporter renders and uploads patches.
type Exporter struct {
	source Source
	fs     afs.Service
	tracer *trace.Tracer
}

// New returns an Exporter over src.
func New(src Source, tracer *trace.Tracer) *Exporter {
	return &Exporter{source: src, fs: afs.New(), tracer: tracer}
}

// Render returns the concatenated patch for every path of req, in order.
// Unchanged files contribute nothing.
func (x *Exporter) Render(ctx context.Context, req Request) ([]byte, error) {
	if len(req.Paths) == 0 {
		return nil, erruser.Wrap(erruser.ErrInvalidInput, "At least one path is required to export a patch.", nil)
	}
	var buf bytes.Buffer
	for _, path := range req.Paths {
		p, err := x.source.RepoPath(path)
		if err != nil {
			return nil, err
		}
		r, err := x.source.ComputeFileDiff(ctx, path, req.Old, req.New)
		if err != nil {
			return nil, err
		}
		hunks, err := diff.Regroup(r.Lines)
		if err != nil {
			return nil, fmt.Errorf("regroup %s: %w", p, err)
		}
		patch, err := diff.Patch{
			Path:      p.String(),
			OldAbsent: r.OldAbsent,
			NewAbsent: r.NewAbsent,
			Binary:    r.Binary,
			Hunks:     hunks,
		}.Unified()
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", p, err)
		}
		x.tracer.Event("export file", "path", p, "hunks", len(hunks), "bytes", len(patch))
		buf.Write(patch)
	}
	return buf.Bytes(), nil
}

// Export renders req and uploads the patch to dest, returning its size.
// A dest without a scheme is a local path, relative to the process directory.
func (x *Exporter) Export(ctx context.Context, req Request, dest string) (int, error) {
	if strings.TrimSpace(dest) == "" {
		return 0, erruser.Wrap(erruser.ErrInvalidInput, "Export destination is empty.", nil)
	}
	patch, err := x.Render(ctx, req)
	if err != nil {
		return 0, err
	}
	if !strings.Contains(dest, "://") {
		abs, err := filepath.Abs(dest)
		if err != nil {
			return 0, erruser.Wrap(erruser.ErrInvalidInput, "Invalid export destination.", err)
		}
		dest = abs
	}
	if err := x.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(patch)); err != nil {
		return 0, erruser.New(fmt.Sprintf("Could not write patch to %s.", dest), err)
	}
	x.tracer.Event("export upload", "dest", dest, "bytes", len(patch))
	return len(patch), nil
}
