// Package git reads committed file content for the diff engine.
//
// A Repository resolves refs to commits, finds the blob a path names in a
// commit, and reads blob bytes. Two backends implement it: GoGit reads the
// object store in-process with go-git, Exec shells out to the git binary.
// Both identify blobs by their git object id, so a working-tree file can be
// compared against a committed blob by hashing it with HashBlob.
package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	"revdiff/cli/internal/erruser"
)

// ObjectID is a full hex git object id.
type ObjectID string

// Backend names accepted by Open.
const (
	BackendGoGit = "gogit"
	BackendExec  = "exec"
)

// Repository is read access to one repository's commits and blobs.
type Repository interface {
	// WorkingDir returns the absolute path of the working tree root.
	WorkingDir() string
	// ResolveRef resolves a branch, tag, commit id or revision expression
	// (e.g. "HEAD~1") to a commit. Unknown refs return erruser.ErrRefNotFound.
	ResolveRef(ctx context.Context, name string) (ObjectID, error)
	// LookupBlob returns the blob path names in commit. ok is false when the
	// path does not exist there or names a directory or submodule.
	LookupBlob(ctx context.Context, commit ObjectID, path string) (id ObjectID, ok bool, err error)
	// ReadBlob returns the content of a blob.
	ReadBlob(ctx context.Context, id ObjectID) ([]byte, error)
}

// Open opens the repository containing dir with the named backend. An empty
// backend selects BackendGoGit.
func Open(dir, backend string) (Repository, error) {
	switch backend {
	case "", BackendGoGit:
		return OpenGoGit(dir)
	case BackendExec:
		return OpenExec(dir)
	default:
		return nil, erruser.Wrap(erruser.ErrInvalidInput,
			fmt.Sprintf("Unknown git backend %q (want %q or %q).", backend, BackendGoGit, BackendExec), nil)
	}
}

// HashBlob returns the object id git would assign to data as a blob.
func HashBlob(data []byte) ObjectID {
	return ObjectID(plumbing.ComputeHash(plumbing.BlobObject, data).String())
}

func refNotFound(name string, err error) error {
	return erruser.Wrap(erruser.ErrRefNotFound, fmt.Sprintf("Ref %q not found.", name), err)
}

func repoErr(msg string, err error) error {
	return erruser.Wrap(erruser.ErrRepository, msg, err)
}
