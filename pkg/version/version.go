// Package version holds build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Build metadata, overridden with
// -ldflags "-X github.com/Sumatoshi-tech/rustassist/pkg/version.Version=v1.2.3".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills Commit and Date from the embedded VCS build info
// when they were not set at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String renders the metadata on one line.
func String() string {
	return fmt.Sprintf("rustassist %s (commit: %s, built: %s)", Version, Commit, Date)
}
