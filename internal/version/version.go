package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Release metadata. The release build sets these with -ldflags "-X".
var (
	// Version is the bundler release.
	Version = "0.1.0"
	// Commit is the source revision; filled from the embedded VCS stamp when not set.
	Commit = ""
	// BuildTime is the UTC build timestamp; filled from the VCS commit time when not set.
	BuildTime = ""
)

// Info is the resolved release metadata.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Modified  bool
}

var (
	resolveOnce sync.Once
	resolved    Info
)

// Get returns the release metadata, preferring ldflags values over the
// settings the Go toolchain stamps into the binary.
func Get() Info {
	resolveOnce.Do(func() {
		resolved = resolve(Version, Commit, BuildTime, debug.ReadBuildInfo)
	})

	return resolved
}

func resolve(version, commit, buildTime string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	if build, ok := read(); ok {
		for _, setting := range build.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = setting.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = setting.Value
				}
			case "vcs.modified":
				info.Modified = setting.Value == "true"
			}
		}
	}

	if info.Commit == "" {
		info.Commit = "none"
	}

	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}

	return info
}

// Short returns only the release version.
func Short() string {
	return Get().Version
}

// ShortCommit returns the first 12 characters of the revision.
func (i Info) ShortCommit() string {
	const length = 12

	if len(i.Commit) > length {
		return i.Commit[:length]
	}

	return i.Commit
}

// Full returns the release version, revision, build time and Go version.
func Full() string {
	info := Get()

	commit := info.ShortCommit()
	if info.Modified {
		commit += "-dirty"
	}

	return fmt.Sprintf("%s (commit %s, built %s, %s)", info.Version, commit, info.BuildTime, info.GoVersion)
}

// UserAgent identifies the bundler to the runtime CDN and package index.
func UserAgent(binary string) string {
	info := Get()

	return fmt.Sprintf("%s/%s (+commit %s; %s)", binary, info.Version, info.ShortCommit(), info.GoVersion)
}
