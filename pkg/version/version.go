// Package version holds the build version of dirdb.
package version

import "fmt"

const (
	// Major represents the current major version of dirdb.
	Major = 0
	// Minor represents the current minor version of dirdb.
	Minor = 1
	// Patch represents the current patch version of dirdb.
	Patch = 0
)

// Version is the full, human-readable version string.
var Version string

func init() {
	Version = fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}
