package version

import "fmt"

// Version and GitCommit are set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "HEAD"
)

// FriendlyVersion returns the version and commit for display.
func FriendlyVersion() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
