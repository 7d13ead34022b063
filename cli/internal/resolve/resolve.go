// Package resolve turns a (ref, path) pair into line-split content, or into
// one of the two non-error outcomes: the path is absent at that ref, or its
// content is binary.
//
// Resolution happens in two steps so callers can key a cache on identities
// before paying for content: Locate resolves the ref and finds the blob id
// (cheap), Load reads and classifies the bytes. Resolve does both.
//
// The empty ref names the working tree: the file is read from disk and its
// identity is the blob id git would give those bytes.
package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"unicode/utf8"

	"revdiff/cli/internal/erruser"
	"revdiff/cli/internal/git"
	"revdiff/cli/internal/linediff"
	"revdiff/cli/internal/trace"
)

// WorkingTree is the ref that selects the working directory.
const WorkingTree = ""

// AbsentID is the identity of a side where the path does not exist.
const AbsentID git.ObjectID = "absent"

// binarySniffLen is how many leading bytes are scanned for NUL.
const binarySniffLen = 8000

// Kind classifies resolved content.
type Kind int

// Content kinds.
const (
	Present Kind = iota
	Absent
	Binary
)

func (k Kind) String() string {
	switch k {
	case Present:
		return "present"
	case Absent:
		return "absent"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Content is the result of resolving one side of a diff. Lines is set only
// when Kind is Present.
type Content struct {
	Kind  Kind
	Lines []linediff.Line
}

// Classify splits data into lines, or reports Binary when data is not valid
// UTF-8 or has a NUL byte near the start.
func Classify(data []byte) Content {
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 || !utf8.Valid(data) {
		return Content{Kind: Binary}
	}
	return Content{Kind: Present, Lines: linediff.Split(string(data))}
}

// Source is a located side of a diff: the path's blob identity at a ref.
type Source struct {
	Ref    string       // as requested; WorkingTree for the working directory
	Path   RepoPath     // canonical path
	Commit git.ObjectID // resolved commit; empty for the working tree
	Blob   git.ObjectID // blob id, or AbsentID

	data []byte // working-tree bytes, read once by Locate
}

// Absent reports whether the path does not exist on this side.
func (s Source) Absent() bool { return s.Blob == AbsentID }

// WorkingTree reports whether this side reads from the working directory.
func (s Source) WorkingTree() bool { return s.Commit == "" }

// Resolver resolves refs and paths against one repository.
type Resolver struct {
	repo   git.Repository
	tracer *trace.Tracer
}

// New returns a Resolver for repo. tracer may be nil.
func New(repo git.Repository, tracer *trace.Tracer) *Resolver {
	return &Resolver{repo: repo, tracer: tracer}
}

// WorkingDir returns the repository's working directory.
func (r *Resolver) WorkingDir() string { return r.repo.WorkingDir() }

// Path canonicalizes a raw path against the working directory.
func (r *Resolver) Path(p string) (RepoPath, error) {
	return CanonicalPath(r.repo.WorkingDir(), p)
}

// Locate resolves ref to a commit and finds path in it. A missing path is not
// an error: the returned Source is Absent.
func (r *Resolver) Locate(ctx context.Context, ref string, path RepoPath) (Source, error) {
	if ref == WorkingTree {
		return r.locateWorkingTree(path)
	}
	commit, err := r.repo.ResolveRef(ctx, ref)
	if err != nil {
		return Source{}, err
	}
	blob, ok, err := r.repo.LookupBlob(ctx, commit, string(path))
	if err != nil {
		return Source{}, err
	}
	if !ok {
		blob = AbsentID
	}
	r.tracer.Event("resolve", "ref", ref, "commit", short(commit), "path", path, "blob", short(blob))
	return Source{Ref: ref, Path: path, Commit: commit, Blob: blob}, nil
}

func (r *Resolver) locateWorkingTree(path RepoPath) (Source, error) {
	src := Source{Ref: WorkingTree, Path: path, Blob: AbsentID}
	full := filepath.Join(r.repo.WorkingDir(), filepath.FromSlash(string(path)))
	fi, err := os.Lstat(full)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		r.tracer.Event("resolve", "ref", "worktree", "path", path, "blob", AbsentID)
		return src, nil
	}
	if err != nil {
		return Source{}, erruser.Wrap(erruser.ErrRepository, fmt.Sprintf("Could not read %s from the working tree.", path), err)
	}
	switch {
	case fi.IsDir():
		return src, nil
	case fi.Mode()&os.ModeSymlink != 0:
		// git stores a symlink as a blob holding its target.
		target, err := os.Readlink(full)
		if err != nil {
			return Source{}, erruser.Wrap(erruser.ErrRepository, fmt.Sprintf("Could not read link %s.", path), err)
		}
		src.data = []byte(filepath.ToSlash(target))
	default:
		data, err := os.ReadFile(full)
		if err != nil {
			return Source{}, erruser.Wrap(erruser.ErrRepository, fmt.Sprintf("Could not read %s from the working tree.", path), err)
		}
		src.data = data
	}
	src.Blob = git.HashBlob(src.data)
	r.tracer.Event("resolve", "ref", "worktree", "path", path, "blob", short(src.Blob))
	return src, nil
}

// Load reads and classifies the content of a located source.
func (r *Resolver) Load(ctx context.Context, src Source) (Content, error) {
	if src.Absent() {
		return Content{Kind: Absent}, nil
	}
	if src.WorkingTree() {
		return Classify(src.data), nil
	}
	data, err := r.repo.ReadBlob(ctx, src.Blob)
	if err != nil {
		return Content{}, err
	}
	return Classify(data), nil
}

// Resolve canonicalizes path, then locates and loads it at ref.
func (r *Resolver) Resolve(ctx context.Context, ref, path string) (Content, error) {
	p, err := r.Path(path)
	if err != nil {
		return Content{}, err
	}
	src, err := r.Locate(ctx, ref, p)
	if err != nil {
		return Content{}, err
	}
	return r.Load(ctx, src)
}

func short(id git.ObjectID) string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}
