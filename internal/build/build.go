// Package build holds metadata stamped into the binary at build time.
package build

const (
	// ProjectName is shown in usage and version output.
	ProjectName = "macos-utilities"
	// ProjectLink is the static HTTPS URL of the project's repository.
	ProjectLink = "https://github.com/er2/macos-utilities"
)

var (
	// CommitDate is the date of the latest commit in the repository. This variable gets set at build-time.
	CommitDate string

	// Version is the latest version of the utility. This variable gets set at build-time.
	Version string
)
