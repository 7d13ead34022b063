package resolve

import (
	"context"
	"fmt"

	"revdiff/cli/internal/erruser"
	"revdiff/cli/internal/git"
)

// fakeRepo is an in-memory git.Repository: refs map to commits, commits map
// paths to blob contents.
type fakeRepo struct {
	workdir string
	refs    map[string]git.ObjectID
	trees   map[git.ObjectID]map[string]string
	reads   int
}

func newFakeRepo(workdir string) *fakeRepo {
	return &fakeRepo{
		workdir: workdir,
		refs:    map[string]git.ObjectID{},
		trees:   map[git.ObjectID]map[string]string{},
	}
}

// commit records files under ref and returns the commit id.
func (f *fakeRepo) commit(ref string, files map[string]string) git.ObjectID {
	id := git.ObjectID(fmt.Sprintf("%040d", len(f.trees)+1))
	f.refs[ref] = id
	f.trees[id] = files
	return id
}

func (f *fakeRepo) WorkingDir() string { return f.workdir }

func (f *fakeRepo) ResolveRef(_ context.Context, name string) (git.ObjectID, error) {
	id, ok := f.refs[name]
	if !ok {
		return "", erruser.Wrap(erruser.ErrRefNotFound, "Ref not found.", nil)
	}
	return id, nil
}

func (f *fakeRepo) LookupBlob(_ context.Context, commit git.ObjectID, path string) (git.ObjectID, bool, error) {
	content, ok := f.trees[commit][path]
	if !ok {
		return "", false, nil
	}
	return git.HashBlob([]byte(content)), true, nil
}

func (f *fakeRepo) ReadBlob(_ context.Context, id git.ObjectID) ([]byte, error) {
	f.reads++
	for _, files := range f.trees {
		for _, content := range files {
			if git.HashBlob([]byte(content)) == id {
				return []byte(content), nil
			}
		}
	}
	return nil, erruser.Wrap(erruser.ErrRepository, "Blob not found.", nil)
}
