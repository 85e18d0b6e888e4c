// Package session runs the detection loop that turns camera frames into
// expression scores.
//
// A Session owns its lifecycle state (Idle, Initializing, Running, Error), the
// running score, and the loop goroutine. Collaborators are injected: a
// FrameSource for frames, a LandmarkProvider for mouth landmarks, and a
// Listener that receives score, message and status events.
package session

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-smile/pkg/expression"
)

// FrameSource supplies encoded frames (JPEG) from a camera.
type FrameSource interface {
	// Open acquires the camera. Calling Open on an active source is a no-op.
	Open(ctx context.Context) error

	// Frame returns the most recent frame.
	Frame(ctx context.Context) ([]byte, error)

	// Close releases the camera.
	Close() error

	// Active reports whether the camera stream is currently held.
	Active() bool
}

// LandmarkProvider finds at most one face in a frame.
type LandmarkProvider interface {
	// Load prepares models. It is called during initialization.
	Load(ctx context.Context) error

	// Detect returns the mouth landmarks of the detected face, or nil if no
	// face was found.
	Detect(ctx context.Context, frame []byte) (*expression.MouthLandmarks, error)
}

// Listener receives the outputs of the detection loop. Calls are made from the
// loop goroutine, one at a time.
type Listener interface {
	OnScoreUpdate(score int)
	OnMessageUpdate(message expression.MessageID)
	OnStatus(status Status)
}

// StateListener is optionally implemented by a Listener to observe lifecycle
// transitions. err is set when entering Error.
type StateListener interface {
	OnStateChange(state State, err error)
}

// PhaseListener is optionally implemented by a Listener to follow the steps
// of initialization.
type PhaseListener interface {
	OnPhase(phase Phase)
}

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateError; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Status is a per-cycle outcome that produced no score.
type Status int

const (
	StatusNoFaceDetected Status = iota
	StatusDetectionError
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusNoFaceDetected:
		return "no_face_detected"
	case StatusDetectionError:
		return "detection_error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for st := StatusNoFaceDetected; st <= StatusDetectionError; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Phase is the current step of initialization.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseLoadingModels
	PhaseStartingCamera
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseLoadingModels:
		return "loading_models"
	case PhaseStartingCamera:
		return "starting_camera"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase as its name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for ph := PhaseNone; ph <= PhaseStartingCamera; ph++ {
		if ph.String() == string(text) {
			*p = ph
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID           string               `json:"id"`
	State        State                `json:"state"`
	Score        int                  `json:"score"`
	RunningScore float64              `json:"running_score"`
	Message      expression.MessageID `json:"message"`
	Cycles       int                  `json:"cycles"`
	LastError    string               `json:"last_error,omitempty"`

	// Phase is set while State is Initializing.
	Phase Phase `json:"phase,omitempty"`

	// Err is the error behind LastError.
	Err error `json:"-"`
}
