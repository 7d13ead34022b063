package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// RepoRoot returns the absolute path of the git repository root containing dir.
// Runs "git rev-parse --show-toplevel" with Dir=dir. Returns error if dir is
// not inside a git repository.
func RepoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		return "", repoErr("This directory is not inside a Git repository.", err)
	}
	root := strings.TrimSpace(string(out))
	return filepath.Abs(root)
}

// Exec is a Repository that runs the git binary for every operation.
type Exec struct {
	root string
}

// OpenExec opens the repository containing dir.
func OpenExec(dir string) (*Exec, error) {
	root, err := RepoRoot(dir)
	if err != nil {
		return nil, err
	}
	return &Exec{root: root}, nil
}

// WorkingDir implements Repository.
func (e *Exec) WorkingDir() string { return e.root }

// ResolveRef implements Repository. Runs "git rev-parse --verify --quiet
// <name>^{commit}", so tags are peeled and non-commits are rejected.
func (e *Exec) ResolveRef(ctx context.Context, name string) (ObjectID, error) {
	if name == "" || strings.HasPrefix(name, "-") {
		return "", refNotFound(name, nil)
	}
	out, stderr, err := e.git(ctx, "rev-parse", "--verify", "--quiet", name+"^{commit}")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// --quiet exits 1 only when the name does not resolve; anything else
		// (128 on a corrupt object) is a repository failure.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return "", refNotFound(name, nil)
		}
		return "", repoErr(fmt.Sprintf("Could not resolve %q.", name), fmt.Errorf("%w: %s", err, stderr))
	}
	return ObjectID(strings.TrimSpace(string(out))), nil
}

// LookupBlob implements Repository. Runs "git ls-tree -z <commit> -- <path>"
// and accepts only a blob entry.
func (e *Exec) LookupBlob(ctx context.Context, commit ObjectID, path string) (ObjectID, bool, error) {
	out, stderr, err := e.git(ctx, "ls-tree", "-z", string(commit), "--", path)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, repoErr(fmt.Sprintf("Could not look up %s in commit %s.", path, commit), fmt.Errorf("%w: %s", err, stderr))
	}
	for _, rec := range strings.Split(string(out), "\x00") {
		// "<mode> SP <type> SP <object> TAB <path>"
		meta, name, ok := strings.Cut(rec, "\t")
		if !ok || name != path {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 || fields[1] != "blob" {
			return "", false, nil
		}
		return ObjectID(fields[2]), true, nil
	}
	return "", false, nil
}

// ReadBlob implements Repository. Runs "git cat-file blob <id>".
func (e *Exec) ReadBlob(ctx context.Context, id ObjectID) ([]byte, error) {
	out, stderr, err := e.git(ctx, "cat-file", "blob", string(id))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, repoErr(fmt.Sprintf("Could not read blob %s.", id), fmt.Errorf("%w: %s", err, stderr))
	}
	return out, nil
}

func (e *Exec) git(ctx context.Context, args ...string) (stdout []byte, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.root
	cmd.Env = append(minimalEnv(), "GIT_LITERAL_PATHSPECS=1")
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return out.Bytes(), strings.TrimSpace(errBuf.String()), err
}

func minimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat", // prevent pager; subprocess output is captured
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	} else if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			env = append(env, "HOME="+profile)
		}
	}
	return env
}

