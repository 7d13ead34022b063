package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// GoGit is a Repository backed by go-git. It is safe for concurrent use.
type GoGit struct {
	repo    *gogit.Repository
	workdir string
}

// OpenGoGit opens the repository containing dir, searching parent
// directories for .git.
func OpenGoGit(dir string) (*GoGit, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, repoErr("This directory is not inside a Git repository.", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, repoErr("Repository has no working tree.", err)
	}
	root, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return nil, repoErr("Could not resolve working tree path.", err)
	}
	return &GoGit{repo: repo, workdir: root}, nil
}

// WorkingDir implements Repository.
func (g *GoGit) WorkingDir() string { return g.workdir }

// ResolveRef implements Repository. Annotated tags are peeled to their commit.
func (g *GoGit) ResolveRef(ctx context.Context, name string) (ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" {
		return "", refNotFound(name, nil)
	}
	h, err := g.repo.ResolveRevision(plumbing.Revision(name))
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound), errors.Is(err, plumbing.ErrObjectNotFound):
		// ResolveRevision also reports an unreadable commit as a missing ref.
		if cerr := g.checkBase(name); cerr != nil {
			return "", repoErr(fmt.Sprintf("Could not read the object %q points to.", name), cerr)
		}
		return "", refNotFound(name, err)
	case err != nil:
		return "", repoErr(fmt.Sprintf("Could not resolve %q.", name), err)
	}
	// ResolveRevision accepts full hashes without checking they exist.
	if _, err := g.repo.CommitObject(*h); err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", refNotFound(name, err)
		}
		return "", repoErr(fmt.Sprintf("Could not read commit %s.", h), err)
	}
	return ObjectID(h.String()), nil
}

// checkBase finds the object the leading ref or hash of a revision names and
// returns the error from reading it, if any. A base that names nothing is not
// an error.
func (g *GoGit) checkBase(rev string) error {
	base := rev
	if i := strings.IndexAny(rev, "~^:@"); i >= 0 {
		base = rev[:i]
	}
	if base == "" {
		base = "HEAD"
	}
	var hashes []plumbing.Hash
	if plumbing.IsHash(base) {
		hashes = append(hashes, plumbing.NewHash(base))
	}
	for _, rule := range plumbing.RefRevParseRules {
		ref, err := storer.ResolveReference(g.repo.Storer, plumbing.ReferenceName(fmt.Sprintf(rule, base)))
		if err == nil && ref.Type() == plumbing.HashReference {
			hashes = append(hashes, ref.Hash())
			break
		}
	}
	for _, h := range hashes {
		obj, err := g.repo.Storer.EncodedObject(plumbing.AnyObject, h)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if _, err := object.DecodeObject(g.repo.Storer, obj); err != nil {
			return err
		}
	}
	return nil
}

// LookupBlob implements Repository.
func (g *GoGit) LookupBlob(ctx context.Context, commit ObjectID, path string) (ObjectID, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	c, err := g.repo.CommitObject(plumbing.NewHash(string(commit)))
	if err != nil {
		return "", false, repoErr(fmt.Sprintf("Could not read commit %s.", commit), err)
	}
	tree, err := c.Tree()
	if err != nil {
		return "", false, repoErr(fmt.Sprintf("Could not read tree of commit %s.", commit), err)
	}
	entry, err := tree.FindEntry(path)
	switch {
	case errors.Is(err, object.ErrEntryNotFound), errors.Is(err, object.ErrDirectoryNotFound):
		return "", false, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// A leading path component names a blob, not a tree.
		return "", false, nil
	}
	if err != nil {
		return "", false, repoErr(fmt.Sprintf("Could not look up %s in commit %s.", path, commit), err)
	}
	if entry.Mode == filemode.Dir || entry.Mode == filemode.Submodule {
		return "", false, nil
	}
	return ObjectID(entry.Hash.String()), true, nil
}

// ReadBlob implements Repository.
func (g *GoGit) ReadBlob(ctx context.Context, id ObjectID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := g.repo.BlobObject(plumbing.NewHash(string(id)))
	if err != nil {
		return nil, repoErr(fmt.Sprintf("Could not read blob %s.", id), err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, repoErr(fmt.Sprintf("Could not read blob %s.", id), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, repoErr(fmt.Sprintf("Could not read blob %s.", id), err)
	}
	return data, nil
}
