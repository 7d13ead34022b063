package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"revdiff/cli/internal/git"
	"revdiff/cli/internal/resolve"
)

// Mode is the assembly shape a cached result was built with.
type Mode string

// Assembly modes.
const (
	ModeHunk     Mode = "hunk"
	ModeComplete Mode = "complete"
)

// Key identifies one diff computation by immutable identities: blob ids, not
// ref names, so a moved branch never serves a stale result. An absent side
// uses resolve.AbsentID.
type Key struct {
	Repo    string // repository working directory
	Path    resolve.RepoPath
	Old     git.ObjectID
	New     git.ObjectID
	Mode    Mode
	Context int // hunk mode only; zero otherwise
}

// Fingerprint returns a deterministic hex id for k.
func (k Key) Fingerprint() string {
	return hashString(strings.Join([]string{
		k.Repo,
		string(k.Path),
		string(k.Old),
		string(k.New),
		string(k.Mode),
		strconv.Itoa(k.Context),
	}, "\x00"))
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
