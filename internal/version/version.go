// Package version holds build information for scadforge.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at build time:
// go build -ldflags "-X scadforge/internal/version.Version=1.0.0 -X scadforge/internal/version.Commit=abc123"
var (
	// Version is the semantic version of scadforge
	Version = "0.3.0"

	// Commit is the git commit hash; filled from the module build info when not set
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// BuildInfo is the structured form printed by `scadforge version --format json`
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the current build information
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    commit(),
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Info returns a short version string
func Info() string {
	c := commit()
	if c != "unknown" && len(c) > 7 {
		return Version + " (" + c[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	info := Get()
	return "scadforge version " + info.Version + "\n" +
		"Commit: " + info.Commit + "\n" +
		"Built: " + info.BuildDate + "\n" +
		"Go: " + info.GoVersion + " " + info.Platform
}

func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return Commit
}
