// Package version holds build-time identifying information for the
// alarmd binary, normally overridden via -ldflags at build time.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Info is the structured shape returned by Get.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Platform  string `json:"platform"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build's version info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		GoVersion: runtime.Version(),
	}
}

// String renders a one-line human-readable summary.
func (i Info) String() string {
	return fmt.Sprintf("alarmd %s (commit %s, built %s)", i.Version, i.Commit, i.BuildTime)
}
