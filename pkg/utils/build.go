// This file contains build information and initialization logic.
// Version, commit and build time are injected with -ldflags "-X github.com/nobletooth/twine/pkg/utils.Version=...".
// CAUTION: This file shouldn't be removed or else the -print_version flag prints nothing useful.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

var (
	TestMode   string // Should be true when running tests.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = "unknown"
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false.", "error", err)
		}
	}
}

// BuildInfo returns the build metadata as slog attributes.
func BuildInfo() []any {
	return []any{"version", Version, "commit", Commit, "build", BuildTime, "uptime", time.Since(StartTime).String()}
}
