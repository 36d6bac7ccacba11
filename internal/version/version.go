// SPDX-License-Identifier: MIT

// Package version carries build metadata, set via -ldflags.
package version

import "runtime/debug"

// Overridden at link time:
//
//	-X github.com/ManuGH/saytube/internal/version.Version=v1.2.3
var (
	Version = "v0.1.0-dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if Commit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value[:min(len(s.Value), 7)]
		case "vcs.time":
			Date = s.Value
		}
	}
}

// String renders the build metadata on one line.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
