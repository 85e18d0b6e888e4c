// Package detection finds a face and its mouth landmarks in camera frames.
//
// Provider chains the YuNet face detector with a 68-point landmark network,
// both run through OpenCV's DNN module. Sidecar asks an external process for
// the same landmarks over a unix socket.
package detection

import (
	"image"
	"math"
)

// Detection represents a detected face
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Rect returns the bounding box in pixels of a width x height frame.
func (d Detection) Rect(width, height int) image.Rectangle {
	return image.Rect(
		int(math.Round(d.X*float64(width))),
		int(math.Round(d.Y*float64(height))),
		int(math.Round((d.X+d.W)*float64(width))),
		int(math.Round((d.Y+d.H)*float64(height))),
	)
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in the image and returns their positions
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	FaceModelPath     string  // Path to the YuNet ONNX model
	LandmarkModelPath string  // Path to the 68-point landmark ONNX model
	ModelBaseURL      string  // Where to fetch missing models from; empty disables download
	ConfidenceThresh  float64 // Minimum confidence (default 0.5)
	InputWidth        int     // Longest frame side fed to the face detector
	InputHeight       int     // Initial detector input height
	LandmarkInput     int     // Square input size of the landmark network
	CropPadding       float64 // Face box expansion before landmarking (fraction of box size)
}

// DefaultConfig returns desktop defaults: a 320px detector input.
func DefaultConfig() Config {
	return Config{
		FaceModelPath:     "models/face_detection_yunet.onnx",
		LandmarkModelPath: "models/face_landmarks_68.onnx",
		ConfidenceThresh:  0.5,
		InputWidth:        320,
		InputHeight:       320,
		LandmarkInput:     112,
		CropPadding:       0.1,
	}
}

// MobileConfig returns the lighter phone defaults: a 224px detector input.
func MobileConfig() Config {
	cfg := DefaultConfig()
	cfg.InputWidth = 224
	cfg.InputHeight = 224
	return cfg
}

// SelectBest picks the best face from multiple detections
// Priority: confidence * 0.7 + area * 0.3
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	if len(dets) == 1 {
		return &dets[0]
	}

	// Find max area for normalization
	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	// Score each detection
	bestScore := -1.0
	var best *Detection

	for i := range dets {
		score := dets[i].Confidence*0.7 + (dets[i].Area()/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}

	return best
}

// Validate checks the configuration and returns any errors
func (c Config) Validate() []string {
	var errs []string
	if c.FaceModelPath == "" {
		errs = append(errs, "face model path is required")
	}
	if c.LandmarkModelPath == "" {
		errs = append(errs, "landmark model path is required")
	}
	if c.ConfidenceThresh <= 0 || c.ConfidenceThresh > 1 {
		errs = append(errs, "confidence threshold must be in (0, 1]")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		errs = append(errs, "detector input size must be positive")
	}
	if c.LandmarkInput <= 0 {
		errs = append(errs, "landmark input size must be positive")
	}
	if c.CropPadding < 0 || c.CropPadding > 1 {
		errs = append(errs, "crop padding must be in [0, 1]")
	}
	return errs
}
