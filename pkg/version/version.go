// Package version describes the release of watchtree and the build it
// comes from.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is a release of watchtree.
type Version struct {
	Major, Minor, Patch int
	Metadata            string
	// Build is the revision the binary was built from. When empty it is
	// taken from the version control information stamped by the Go
	// toolchain.
	Build string
}

// WatchtreeVersion is the current version of watchtree.
var WatchtreeVersion = Version{Major: 0, Minor: 3, Patch: 0}

func (v Version) String() string {
	s := fmt.Sprintf("Version: %d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		s += "-" + v.Metadata
	}
	build := v.Build
	if build == "" {
		build = vcsRevision()
	}
	if build == "" {
		return s
	}
	return s + "\nBuild: " + build
}

// vcsRevision returns the revision recorded in the build information,
// suffixed with "-dirty" if the working tree had local modifications.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return revisionOf(info.Settings)
}

func revisionOf(settings []debug.BuildSetting) string {
	var rev string
	modified := false
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if rev != "" && modified {
		rev += "-dirty"
	}
	return rev
}
