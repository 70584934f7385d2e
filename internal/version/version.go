// Package version exposes build metadata stamped at link time.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return "proctor " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent is sent on every request to the interview backend.
func UserAgent() string {
	return "proctor/" + Version
}
