package detection

import "errors"

var (
	// ErrNotLoaded is returned by Detect before Load succeeds.
	ErrNotLoaded = errors.New("landmark models not loaded")

	// ErrModelNotFound is returned when a model file is missing and cannot be
	// downloaded.
	ErrModelNotFound = errors.New("model file not found")

	// ErrBadOutput is returned when a network produces fewer values than
	// expected.
	ErrBadOutput = errors.New("unexpected model output")
)
