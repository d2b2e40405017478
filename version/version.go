// Package version exposes build information for the running binary.
//
// Version and commit are stamped at build time via -ldflags:
//
//	go build -ldflags "-X github.com/aphorist/aphorist/version.Version=1.2.0"
package version

import "runtime/debug"

// Set at build time via -ldflags. Version defaults to "dev" for local builds.
var (
	Version = "dev"
	Commit  = ""
)

// Info is the resolved build identity.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Get resolves build information, falling back to the embedded module build
// info when ldflags were not provided.
func Get() Info {
	info := Info{Version: Version, Commit: Commit}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Commit == "" {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Commit = s.Value
				break
			}
		}
	}
	return info
}
