package session

import "errors"

var (
	// ErrInitialization wraps failures to load models or open the camera.
	// The session stays in Error until Retry or Reset.
	ErrInitialization = errors.New("session initialization failed")

	// ErrModelLoad and ErrCamera identify the failed initialization step.
	ErrModelLoad = errors.New("load models")
	ErrCamera    = errors.New("open camera")

	// ErrDetectionCycle wraps failures inside a running cycle. The loop backs
	// off and continues.
	ErrDetectionCycle = errors.New("detection cycle failed")

	// ErrAlreadyRunning is returned by Start when the loop is live.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNotIdle is returned by Start while initializing or in Error.
	ErrNotIdle = errors.New("session not idle")
)
