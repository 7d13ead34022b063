// Package engine computes file diffs between revisions: it resolves both sides,
// runs the line diff and assembles hunk or complete output, serving repeated
// requests from a shared cache.
package engine

import (
	"context"
	"fmt"

	"revdiff/cli/internal/cache"
	"revdiff/cli/internal/diff"
	"revdiff/cli/internal/erruser"
	"revdiff/cli/internal/git"
	"revdiff/cli/internal/linediff"
	"revdiff/cli/internal/resolve"
	"revdiff/cli/internal/telemetry"
	"revdiff/cli/internal/trace"
)

// Options configures an Engine.
//
// The zero Options is valid and yields hunks with no context lines. Callers
// wanting git's usual three set ContextLines to diff.DefaultContext or to any
// negative value.
type Options struct {
	// ContextLines around each hunk. Zero means none; negative selects
	// diff.DefaultContext.
	ContextLines int
	// DefaultOldRef is the old side of ComputeFileDiff when none is given ("HEAD").
	DefaultOldRef string
	// Cache, when nil, disables caching.
	Cache  *cache.Cache
	Tracer *trace.Tracer
}

// Engine is safe for concurrent use.
type Engine struct {
	resolver      *resolve.Resolver
	cache         *cache.Cache
	tracer        *trace.Tracer
	contextLines  int
	defaultOldRef string
}

// New returns an Engine over repo.
func New(repo git.Repository, opts Options) *Engine {
	e := &Engine{
		resolver:      resolve.New(repo, opts.Tracer),
		cache:         opts.Cache,
		tracer:        opts.Tracer,
		contextLines:  opts.ContextLines,
		defaultOldRef: opts.DefaultOldRef,
	}
	if e.contextLines < 0 {
		e.contextLines = diff.DefaultContext
	}
	if e.defaultOldRef == "" {
		e.defaultOldRef = "HEAD"
	}
	return e
}

// Resolver returns the engine's resolver.
func (e *Engine) Resolver() *resolve.Resolver { return e.resolver }

// RepoPath canonicalizes path against the repository working directory.
func (e *Engine) RepoPath(path string) (resolve.RepoPath, error) { return e.resolver.Path(path) }

// ComputeFileDiff returns the hunk-mode diff of path: a Header line per hunk
// followed by its lines. An empty oldRef selects the default old ref; an
// empty newRef selects the working tree.
func (e *Engine) ComputeFileDiff(ctx context.Context, path, oldRef, newRef string) (diff.Result, error) {
	if oldRef == "" {
		oldRef = e.defaultOldRef
	}
	return e.compute(ctx, path, oldRef, newRef, cache.ModeHunk)
}

// ComputeCompleteDiff returns every line of path at newRef with removed lines
// inlined. Both refs are required.
func (e *Engine) ComputeCompleteDiff(ctx context.Context, path, oldRef, newRef string) (diff.Result, error) {
	if oldRef == "" || newRef == "" {
		return diff.Result{}, erruser.Wrap(erruser.ErrInvalidInput, "Both an old and a new ref are required for a complete diff.", nil)
	}
	return e.compute(ctx, path, oldRef, newRef, cache.ModeComplete)
}

// Invalidate drops cached results for path and returns how many were dropped.
func (e *Engine) Invalidate(path string) (int, error) {
	p, err := e.resolver.Path(path)
	if err != nil {
		return 0, err
	}
	if e.cache == nil {
		return 0, nil
	}
	return e.cache.Invalidate(p), nil
}

// InvalidateAll drops every cached result.
func (e *Engine) InvalidateAll() {
	if e.cache != nil {
		e.cache.InvalidateAll()
	}
}

func (e *Engine) compute(ctx context.Context, path, oldRef, newRef string, mode cache.Mode) (r diff.Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "revdiff.compute")
	span.SetString("path", path).SetString("mode", string(mode)).
		SetString("old_ref", oldRef).SetString("new_ref", refLabel(newRef))
	defer func() { telemetry.EndSpan(span, err) }()

	p, err := e.resolver.Path(path)
	if err != nil {
		return diff.Result{}, err
	}
	oldSrc, newSrc, err := e.locate(ctx, p, oldRef, newRef)
	if err != nil {
		return diff.Result{}, err
	}
	e.tracer.Event("compute", "path", p, "mode", mode, "old", refLabel(oldRef), "new", refLabel(newRef))

	build := func(ctx context.Context) (diff.Result, error) {
		return e.build(ctx, oldSrc, newSrc, mode)
	}
	if e.cache == nil {
		r, err = build(ctx)
	} else {
		key := cache.Key{
			Repo: e.resolver.WorkingDir(),
			Path: p,
			Old:  oldSrc.Blob,
			New:  newSrc.Blob,
			Mode: mode,
		}
		if mode == cache.ModeHunk {
			key.Context = e.contextLines
		}
		r, err = e.cache.GetOrCompute(ctx, key, build)
	}
	if err != nil {
		return diff.Result{}, err
	}
	stats := r.Stats()
	span.SetInt("added", stats.Added).SetInt("removed", stats.Removed).SetBool("binary", r.Binary)
	return r, nil
}

func (e *Engine) locate(ctx context.Context, p resolve.RepoPath, oldRef, newRef string) (oldSrc, newSrc resolve.Source, err error) {
	ctx, span := telemetry.StartSpan(ctx, "revdiff.resolve")
	defer func() { telemetry.EndSpan(span, err) }()
	oldSrc, err = e.resolver.Locate(ctx, oldRef, p)
	if err != nil {
		return
	}
	newSrc, err = e.resolver.Locate(ctx, newRef, p)
	return
}

// build loads both sides and assembles the result. Absent sides diff as
// empty; a binary side yields a Binary result with no lines.
func (e *Engine) build(ctx context.Context, oldSrc, newSrc resolve.Source, mode cache.Mode) (r diff.Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "revdiff.diff")
	defer func() { telemetry.EndSpan(span, err) }()

	oldC, err := e.resolver.Load(ctx, oldSrc)
	if err != nil {
		return diff.Result{}, err
	}
	newC, err := e.resolver.Load(ctx, newSrc)
	if err != nil {
		return diff.Result{}, err
	}
	r = diff.Result{
		Lines:     []diff.Line{},
		OldAbsent: oldC.Kind == resolve.Absent,
		NewAbsent: newC.Kind == resolve.Absent,
	}
	if oldC.Kind == resolve.Binary || newC.Kind == resolve.Binary {
		r.Binary = true
		return r, nil
	}
	script := linediff.Diff(oldC.Lines, newC.Lines)
	span.SetInt("old_lines", len(oldC.Lines)).SetInt("new_lines", len(newC.Lines)).SetInt("edits", len(script))
	switch mode {
	case cache.ModeComplete:
		r.Lines = diff.AssembleFull(oldC.Lines, newC.Lines, script)
	case cache.ModeHunk:
		r.Lines = diff.Flatten(diff.AssembleHunks(oldC.Lines, newC.Lines, script, e.contextLines))
	default:
		return diff.Result{}, fmt.Errorf("unknown diff mode %q", mode)
	}
	return r, nil
}

func refLabel(ref string) string {
	if ref == resolve.WorkingTree {
		return "worktree"
	}
	return ref
}
