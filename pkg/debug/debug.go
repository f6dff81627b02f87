// Package debug provides global verbose-logging flags.
package debug

import "github.com/teslashibe/go-movenet/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Tracking controls whether per-frame tracking logs are shown (cycle timing,
// transient estimation failures). Use --debug-tracking to enable them.
var Tracking bool

// Log logs at debug level only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// TrackLog logs at debug level only if tracking debug mode is enabled
func TrackLog(msg string, args ...any) {
	if Tracking {
		log.Debug(msg, args...)
	}
}
