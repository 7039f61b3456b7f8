// Package buildinfo identifies the running binary.
//
// Values may be set with -ldflags, for example:
//
//	-X 'github.com/m3rciful/rabiesbot/core/buildinfo.Version=v0.3.0'
//
// Otherwise Commit and Date fall back to the VCS stamp the go tool embeds.
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "local"
	// Date is the build or commit time in RFC3339.
	Date = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "local" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String formats the build as "version (commit)".
func String() string {
	return Version + " (" + Commit + ")"
}
