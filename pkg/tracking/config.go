// Package tracking runs the pose-tracking session: it owns the camera and
// model for the active session, drives the per-frame estimation loop and
// answers thresholded keypoint queries over the latest pose.
package tracking

import "time"

// DefaultMinScore is the confidence threshold a new controller starts with.
const DefaultMinScore = 0.3

// Config holds controller parameters.
type Config struct {
	// FrameInterval paces the estimation loop. One cycle per interval,
	// matching a display refresh. Zero yields to the scheduler between
	// cycles without sleeping.
	FrameInterval time.Duration

	// MinScore is the initial confidence threshold.
	MinScore float64
}

// DefaultConfig returns a 60 Hz loop with the default threshold.
func DefaultConfig() Config {
	return Config{
		FrameInterval: time.Second / 60,
		MinScore:      DefaultMinScore,
	}
}
