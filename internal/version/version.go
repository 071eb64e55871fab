// Package version exposes the build identity stamped in by linker flags.
package version

import "fmt"

const shortCommitLength = 7

// Set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// GetVersion returns the version string, with a short commit hash when one
// was stamped in.
func GetVersion() string {
	if Commit == "unknown" || Commit == "" {
		return Version
	}
	commit := Commit
	if len(commit) > shortCommitLength {
		commit = commit[:shortCommitLength]
	}
	return fmt.Sprintf("%s (%s)", Version, commit)
}
