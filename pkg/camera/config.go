// Package camera provides webcam capture and runtime-configurable camera
// settings for the expression scorer.
package camera

import "fmt"

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// Device is a capture index ("0") or a file/stream URL.
	Device string `json:"device"`

	// === Resolution ===
	// Width and Height are the ideal frame size requested from the driver.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Min and Max bound the accepted frame size. Zero disables the bound.
	MinWidth  int `json:"min_width"`
	MinHeight int `json:"min_height"`
	MaxWidth  int `json:"max_width"`
	MaxHeight int `json:"max_height"`

	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// FacingMode is "user" (front camera) or "environment".
	FacingMode string `json:"facing_mode"`

	// Mirror flips frames horizontally, as a selfie preview does.
	Mirror bool `json:"mirror"`
}

// Capture limits.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the desktop configuration: 640x480 from the
// user-facing camera.
func DefaultConfig() Config {
	return Config{
		Device:     "0",
		Width:      640,
		Height:     480,
		Framerate:  30,
		Quality:    80,
		FacingMode: FacingUser,
	}
}

// Facing modes.
const (
	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must not be empty")
	}

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.MinWidth > 0 && c.Width < c.MinWidth {
		errors = append(errors, "width must not be below min_width")
	}
	if c.MinHeight > 0 && c.Height < c.MinHeight {
		errors = append(errors, "height must not be below min_height")
	}
	if c.MaxWidth > 0 && c.Width > c.MaxWidth {
		errors = append(errors, "width must not exceed max_width")
	}
	if c.MaxHeight > 0 && c.Height > c.MaxHeight {
		errors = append(errors, "height must not exceed max_height")
	}

	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	if c.FacingMode != "" && c.FacingMode != FacingUser && c.FacingMode != FacingEnvironment {
		errors = append(errors, "facing_mode must be user or environment")
	}

	return errors
}

// Accepts reports whether a negotiated frame size satisfies the bounds.
func (c *Config) Accepts(width, height int) bool {
	if c.MinWidth > 0 && width < c.MinWidth {
		return false
	}
	if c.MinHeight > 0 && height < c.MinHeight {
		return false
	}
	if c.MaxWidth > 0 && width > c.MaxWidth {
		return false
	}
	if c.MaxHeight > 0 && height > c.MaxHeight {
		return false
	}
	return true
}
