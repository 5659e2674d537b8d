// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/matzehuels/tokenfield/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/tokenfield/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/tokenfield/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/tokenfield
package buildinfo

import "fmt"

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Info is a snapshot of the build variables, shaped for JSON responses.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"built"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// Dev reports whether the binary was built without a release version.
func (i Info) Dev() bool {
	return i.Version == "" || i.Version == "dev"
}

// String returns the formatted build information.
func (i Info) String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", i.Version, i.Commit, i.Date)
}

// String returns the formatted build information.
func String() string {
	return Get().String()
}

// Template returns the version template string for cobra. Development
// builds omit the commit and date.
func Template() string {
	i := Get()
	if i.Dev() {
		return fmt.Sprintf("{{.Name}} version %s (development build)\n", i.Version)
	}
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", i.Version, i.Commit, i.Date)
}
