// Package buildinfo carries version stamps set with -ldflags:
//
//	-X 'github.com/m3rciful/catalogbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/catalogbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/catalogbot/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// Revision returns the stamped commit and date. Unstamped builds fall back
// to the VCS settings the go tool embeds.
func Revision() (commit, date string) {
	commit, date = Commit, Date
	if commit != "local" {
		return commit, date
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.time":
			if date == "" {
				date = s.Value
			}
		}
	}
	return commit, date
}
