// Package version reports the tracker's version.
//
//	go build -ldflags "-X github.com/ramonehamilton/TCG-Collection-Tracker/internal/version.Version=v1.2.3"
package version

import "runtime/debug"

// Version is set at build time. Left at "dev", GetVersion falls back to the
// module version recorded by go install.
var Version = "dev"

// GetVersion returns the build version.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return Version
}
