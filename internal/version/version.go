// Package version reports the build of the itoo and relay binaries.
package version

import "runtime/debug"

// Version is the release of the binaries.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/Vinitharameshchand/akai-itoo/internal/version.Version=v1.0.0'"
var Version = "dev"

// String returns Version, falling back to the module version recorded by
// `go install` when no release was stamped.
func String() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
