package resolve

import (
	"fmt"
	"path/filepath"
	"strings"

	"revdiff/cli/internal/erruser"
)

// RepoPath is a path relative to the repository root, forward-slash separated.
// It never contains the working-directory prefix. Build one with CanonicalPath.
type RepoPath string

// String returns the path.
func (p RepoPath) String() string { return string(p) }

// CanonicalPath normalizes p into a RepoPath. p may be repo-relative or an
// absolute path under workdir (a trailing separator on workdir is tolerated).
// Empty paths, the root itself and paths outside workdir are rejected with
// erruser.ErrInvalidPath.
func CanonicalPath(workdir, p string) (RepoPath, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidPath(p, "Path is empty.")
	}
	rel := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(rel) {
		var ok bool
		rel, ok = relativeTo(workdir, rel)
		if !ok {
			return "", invalidPath(p, "Path is outside the repository working directory.")
		}
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", invalidPath(p, "Path is outside the repository working directory.")
	}
	return RepoPath(filepath.ToSlash(rel)), nil
}

// relativeTo strips workdir from abs. Symlinked forms of either side (e.g.
// /var vs /private/var on macOS) are retried with links evaluated.
func relativeTo(workdir, abs string) (string, bool) {
	root := filepath.Clean(workdir)
	if rel, ok := within(root, abs); ok {
		return rel, true
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", false
	}
	realAbs, err := evalExisting(abs)
	if err != nil {
		return "", false
	}
	return within(realRoot, realAbs)
}

func within(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// evalExisting evaluates symlinks in the longest existing prefix of p, so
// paths of files that were deleted from the working tree still resolve.
func evalExisting(p string) (string, error) {
	dir, rest := p, ""
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

func invalidPath(p, msg string) error {
	return erruser.Wrap(erruser.ErrInvalidPath, msg, fmt.Errorf("path %q", p))
}
