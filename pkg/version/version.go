// Package version provides build and version information for pretext.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set at build time via ldflags, for example:
//
//	-X github.com/pretextml/pretext/pkg/version.Version=$(VERSION)
//
// Without ldflags the binary runs as a dev build and the VCS fields
// are backfilled from the embedded module build info when present.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"

	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// BuildInfo carries the build facts in a JSON-friendly shape for
// `pretext version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// backfillVCS fills Commit and Date from the module build info when
// ldflags left them unset, so plain `go install` builds still report
// where they came from.
var backfillVCS = sync.OnceFunc(func() {
	if Commit != "unknown" && Date != "unknown" {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "unknown":
			Commit = s.Value
			if len(Commit) > 12 {
				Commit = Commit[:12]
			}
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		}
	}
})

// String returns the full human-readable version line.
func String() string {
	backfillVCS()
	return fmt.Sprintf("pretext %s (commit %s, built %s, %s, %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns the bare version, for prompts and user agents.
func Short() string {
	return Version
}

// GetInfo snapshots the build facts after the VCS backfill has run.
func GetInfo() BuildInfo {
	backfillVCS()
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
