// Package version holds the revdiff build identity. Release builds set it via:
//
//	go build -ldflags "-X revdiff/cli/internal/version.Version=v1.0.0 -X revdiff/cli/internal/version.Commit=abc1234"
package version

// Version is the release version, or "dev".
var Version = "dev"

// Commit is the short git commit hash of a dev build.
var Commit = ""

// String returns "dev (abc1234)" for dev builds with a commit, else Version.
// It is reported by --version and as the service.version span attribute.
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
