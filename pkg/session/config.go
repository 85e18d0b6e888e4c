package session

import (
	"fmt"
	"time"
)

// Config holds the timing parameters of the detection loop.
type Config struct {
	// FrameRate caps how often cycles start, standing in for the display
	// refresh cadence. Zero means no cap.
	FrameRate float64

	// ErrorBackoff is the pause after a failed cycle.
	ErrorBackoff time.Duration

	// RestartDelay is the pause between releasing and reacquiring the camera
	// on Retry.
	RestartDelay time.Duration
}

// DefaultConfig returns the production loop timing.
func DefaultConfig() Config {
	return Config{
		FrameRate:    60,
		ErrorBackoff: 2 * time.Second,
		RestartDelay: 1 * time.Second,
	}
}

// Validate checks the config values.
func (c Config) Validate() error {
	if c.FrameRate < 0 {
		return fmt.Errorf("frame rate must not be negative, got %v", c.FrameRate)
	}
	if c.ErrorBackoff <= 0 {
		return fmt.Errorf("error backoff must be positive, got %v", c.ErrorBackoff)
	}
	if c.RestartDelay < 0 {
		return fmt.Errorf("restart delay must not be negative, got %v", c.RestartDelay)
	}
	return nil
}
