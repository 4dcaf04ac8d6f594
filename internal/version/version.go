// Package version reports which libgen build is running. Release builds set
// the variables with -ldflags, for example:
//
//	go build -ldflags "-X github.com/54b3r/libgen-go/internal/version.Version=v0.3.0" ./cmd/libgen
//
// Plain `go build` and `go install` leave them at their defaults; Commit and
// BuildDate are then recovered from the VCS stamp the toolchain embeds.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag, or "dev".
	Version = "dev"
	// Commit is the short git revision, or "unknown".
	Commit = "unknown"
	// BuildDate is the commit or build time in RFC 3339, or "unknown".
	BuildDate = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fillFromBuildInfo(info.Settings)
}

// fillFromBuildInfo copies vcs.revision and vcs.time into Commit and
// BuildDate when ldflags did not set them.
func fillFromBuildInfo(settings []debug.BuildSetting) {
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value[:min(len(s.Value), 7)]
			}
		case "vcs.time":
			if BuildDate == "unknown" && s.Value != "" {
				BuildDate = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && Commit != "unknown" {
		Commit += "-dirty"
	}
}

// String is the one-line form printed by `libgen version`.
func String() string {
	return fmt.Sprintf("libgen %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
