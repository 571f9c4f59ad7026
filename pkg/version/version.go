// Package version exposes build metadata for the mgctl binary.
package version

import (
	"runtime"
	"runtime/debug"
	"time"
)

// Overridden at release build time via
// -ldflags "-X github.com/mediguide/mgctl/pkg/version.version=... ...".
var (
	version = "dev"
	commit  = ""
	date    = ""
)

// Info describes the running binary.
type Info struct {
	Version   string     `json:"version" yaml:"version"`
	Commit    string     `json:"commit,omitempty" yaml:"commit,omitempty"`
	BuiltAt   *time.Time `json:"built_at,omitempty" yaml:"built_at,omitempty"`
	GoVersion string     `json:"go_version" yaml:"go_version"`
	Platform  string     `json:"platform" yaml:"platform"`
}

// Get assembles the build info. When the commit was not injected it falls
// back to the VCS revision recorded in the embedded module build info, so
// plain `go build` binaries still report something useful.
func Get() Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Commit == "" {
		info.Commit = vcsRevision()
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		info.BuiltAt = &t
	}
	return info
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func (i Info) String() string {
	out := "mgctl " + i.Version
	if i.Commit != "" {
		out += " (commit " + i.Commit + ")"
	}
	if i.BuiltAt != nil {
		out += " built " + i.BuiltAt.UTC().Format(time.RFC3339)
	}
	return out + " " + i.GoVersion + " " + i.Platform
}
