// Package version reports the tcpresponder build. Release builds inject
// version and buildID with -ldflags "-X"; other builds fall back to the
// module and VCS data the Go toolchain embeds.
package version

import (
	"runtime"
	"runtime/debug"
	"sync"
)

const unset = "dev"

//nolint:gochecknoglobals // set via ldflags
var (
	version = unset
	buildID = unset
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
}

//nolint:gochecknoglobals // resolved once per process
var (
	resolveOnce sync.Once
	resolved    Info
)

// Get returns the build information, resolving embedded build data the
// first time ldflags left a field unset.
func Get() Info {
	resolveOnce.Do(func() {
		resolved = resolve(version, buildID, debug.ReadBuildInfo)
	})

	return resolved
}

func resolve(v, build string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: v, BuildID: build, GoVersion: runtime.Version()}

	if v != unset && build != unset {
		return info
	}

	bi, ok := read()
	if !ok || bi == nil {
		return info
	}

	if info.Version == unset && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	if info.BuildID == unset {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				info.BuildID = shortRevision(s.Value)
				break
			}
		}
	}

	return info
}

func shortRevision(rev string) string {
	const n = 12
	if len(rev) > n {
		return rev[:n]
	}

	return rev
}

// GetVersion returns the release version.
func GetVersion() string {
	return Get().Version
}

// GetBuildID returns the build identifier.
func GetBuildID() string {
	return Get().BuildID
}

// GetFullVersion returns version with build ID.
func GetFullVersion() string {
	info := Get()

	return info.Version + " (build: " + info.BuildID + ")"
}
