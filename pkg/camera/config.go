// Package camera defines the capture session used by the pose tracker:
// frame sources, capture configuration and runtime config management.
package camera

import "time"

// Facing modes for the capture device.
const (
	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// Config holds capture parameters. Read once per Open.
type Config struct {
	DeviceID  int    `json:"device_id" yaml:"device_id"` // OS camera index
	Width     int    `json:"width" yaml:"width"`         // Frame width in pixels
	Height    int    `json:"height" yaml:"height"`       // Frame height in pixels
	Framerate int    `json:"framerate" yaml:"framerate"` // Requested FPS
	Facing    string `json:"facing" yaml:"facing"`       // "user" or "environment"

	// OpenTimeout bounds how long Open waits for the first frame.
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout"`
}

// Capture limits accepted by Validate.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the front-facing 640x480 capture used by the tracker.
func DefaultConfig() Config {
	return Config{
		DeviceID:    0,
		Width:       640,
		Height:      480,
		Framerate:   30,
		Facing:      FacingUser,
		OpenTimeout: 5 * time.Second,
	}
}

// Validate checks that the config values are within range.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.DeviceID < 0 {
		errors = append(errors, "device_id must be >= 0")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Facing != "" && c.Facing != FacingUser && c.Facing != FacingEnvironment {
		errors = append(errors, "facing must be user or environment")
	}
	if c.OpenTimeout < 0 {
		errors = append(errors, "open_timeout must not be negative")
	}

	return errors
}

// Mirrored reports whether frames from this config should be mirrored
// so left/right match the viewer.
func (c *Config) Mirrored() bool {
	return c.Facing == "" || c.Facing == FacingUser
}
