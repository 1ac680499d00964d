// Package buildinfo exposes compile-time metadata for the linkmark binary.
package buildinfo

import "fmt"

// The following variables are overridden via ldflags during release builds.
// Defaults cover local development builds.
var (
	// Version is the semantic version or git describe output of the binary.
	Version = "dev"

	// Commit is the git commit SHA baked into the binary.
	Commit = "none"

	// BuildDate records when the binary was built in UTC.
	BuildDate = "unknown"
)

// UserAgent returns the User-Agent header value sent with outbound requests.
func UserAgent() string {
	return fmt.Sprintf("linkmark/%s (%s)", Version, Commit)
}
