// Package version reports the lifxlab build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/lifxlab/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/lifxlab/internal/version.Commit=abc123"
//
// Unset values are filled from the module's VCS stamp, then fall back to
// "dev-<build time>" and "unknown".
var (
	Version = ""
	Commit  = ""
)

// shortHashLen is the length of an abbreviated commit hash
const shortHashLen = 7

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromSettings(info.Settings)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings derives a version and commit from VCS build settings.
// Either may be empty when the binary was built outside a repository.
func fromSettings(settings []debug.BuildSetting) (version, commit string) {
	var revision, vcsTime string
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		case "vcs.time":
			vcsTime = s.Value
		}
	}

	if revision != "" {
		commit = revision[:min(len(revision), shortHashLen)]
		if dirty {
			commit += "-dirty"
		}
	}

	// Build info carries no tags, so the best we have is the commit date
	if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
		version = "dev-" + t.UTC().Format("20060102")
	}

	return version, commit
}

// Full returns the version with commit and Go toolchain
func Full() string {
	return fmt.Sprintf("%s (commit: %s, %s)", Version, Commit, runtime.Version())
}

// Short returns the version without the commit
func Short() string {
	return Version
}

// UserAgent returns the identifier sent in the HTTP Server header
func UserAgent() string {
	return "lifxlab/" + Version
}
