// Package smile assembles the camera, landmark provider, detection session
// and dashboard into the smile application.
package smile

import (
	"io"

	"github.com/teslashibe/go-smile/internal/config"
	"github.com/teslashibe/go-smile/pkg/camera"
	"github.com/teslashibe/go-smile/pkg/detection"
	"github.com/teslashibe/go-smile/pkg/session"
)

// Config holds all configuration for the smile application.
// Flag parsing is done in cmd/smile; this struct is data only.
type Config struct {
	config.Config

	// AutoStart starts detection as soon as the dashboard is up.
	AutoStart bool
}

// Platform returns the configured platform, desktop when unset.
func (c Config) Platform() camera.Platform {
	if c.Config.Platform == "" {
		return camera.PlatformDesktop
	}
	return camera.Platform(c.Config.Platform)
}

// CameraConfig returns the platform preset for the configured device.
func (c Config) CameraConfig() camera.Config {
	cfg := camera.PresetFor(c.Platform())
	cfg.Device = c.Device
	return cfg
}

// DetectionConfig returns detector settings: the lighter input size on
// mobile platforms.
func (c Config) DetectionConfig() detection.Config {
	cfg := detection.DefaultConfig()
	if c.Platform().IsMobile() {
		cfg = detection.MobileConfig()
	}
	cfg.FaceModelPath = c.FaceModel
	cfg.LandmarkModelPath = c.LandmarkModel
	cfg.ModelBaseURL = c.ModelURL
	cfg.ConfidenceThresh = c.Threshold
	return cfg
}

// SessionConfig returns the detection loop timing.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		FrameRate:    c.FrameRate,
		ErrorBackoff: c.ErrorBackoff,
		RestartDelay: c.RestartDelay,
	}
}

// NewProvider returns the sidecar client when a socket is configured and the
// in-process OpenCV pipeline otherwise.
func (c Config) NewProvider() session.LandmarkProvider {
	if c.Sidecar != "" {
		return detection.NewSidecar(c.Sidecar, 0)
	}
	return detection.NewProvider(c.DetectionConfig())
}

func closeProvider(p session.LandmarkProvider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
