// Package version reports the build version, set by ldflags or read from the
// embedded VCS build info.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

const devVersion = "0.0.0-dev"

var (
	Version   = devVersion
	Commit    = ""
	BuildTime = ""
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		fromSettings(bi.Settings)
	}
}

// fromSettings fills values ldflags left unset.
func fromSettings(settings []debug.BuildSetting) {
	if Version != "" && Version != devVersion {
		return
	}

	get := func(key string) string {
		for _, s := range settings {
			if s.Key == key {
				return s.Value
			}
		}
		return ""
	}

	if rev := get("vcs.revision"); Commit == "" && len(rev) >= 7 {
		Commit = rev[:7]
	}
	if t := get("vcs.time"); BuildTime == "" && t != "" {
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			BuildTime = ts.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	if tag := get("vcs.tag"); tag != "" {
		Version = strings.TrimPrefix(tag, "v")
		if get("vcs.modified") == "true" {
			Version += "-dirty"
		}
	}
}

// FormatVersion renders e.g. "1.2.3 (commit: abc1234, built at: 2025-10-23T10:20:30Z)".
func FormatVersion() string {
	ver := Version
	if ver == "" {
		ver = devVersion
	}

	switch {
	case Commit == "" && BuildTime == "":
		return ver + " (development)"
	case Commit == "":
		return fmt.Sprintf("%s (built at: %s)", ver, BuildTime)
	case BuildTime == "":
		return fmt.Sprintf("%s (commit: %s)", ver, Commit)
	default:
		return fmt.Sprintf("%s (commit: %s, built at: %s)", ver, Commit, BuildTime)
	}
}
