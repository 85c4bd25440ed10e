// Package version provides build-time version information for jobconsole.
// Version, Commit, and BuildTime are populated via ldflags during the build process.
// For development builds, default values are used.
package version

// Build information variables, set via ldflags at build time:
//
//	go build -ldflags "-X github.com/doughall/jobconsole/internal/version.Version=0.4.0 \
//	                   -X github.com/doughall/jobconsole/internal/version.Commit=abc123 \
//	                   -X github.com/doughall/jobconsole/internal/version.BuildTime=2026-10-01T12:00:00Z"
var (
	// Version is the semantic version of the console (e.g., "0.4.0", "dev").
	Version = "dev"

	// Commit is the git commit hash from which the binary was built.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built (RFC3339 format).
	BuildTime = "unknown"
)

// Info returns a formatted string with all version information.
func Info() string {
	return "jobconsole " + Version + " (commit: " + Commit + ", built: " + BuildTime + ")"
}

// UserAgent is the User-Agent header value sent to the jobs API.
func UserAgent() string {
	return "jobconsole/" + Version
}
