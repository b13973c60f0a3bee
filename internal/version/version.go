// Package version holds build metadata injected via -ldflags.
package version

import "fmt"

// Set at build time with -ldflags "-X github.com/sydlexius/spinmatch/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent returns the User-Agent header sent to upstream services.
// MusicBrainz rejects anonymous clients, so a contact is always included.
func UserAgent(contact string) string {
	if contact == "" {
		contact = "https://github.com/sydlexius/spinmatch"
	}
	return fmt.Sprintf("Spinmatch/%s ( %s )", Version, contact)
}

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("spinmatch %s (commit %s, built %s)", Version, Commit, Date)
}
