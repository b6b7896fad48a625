package version

import "fmt"

// Set at build time via -ldflags "-X github.com/cz7host/frp/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = ""
)

// Info returns a printable version string.
func Info() string {
	if GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
