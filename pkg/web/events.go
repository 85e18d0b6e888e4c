package web

import (
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-smile/internal/log"
	"github.com/teslashibe/go-smile/pkg/expression"
	"github.com/teslashibe/go-smile/pkg/hub"
	"github.com/teslashibe/go-smile/pkg/session"
)

// Event types pushed on /ws/score
const (
	EventSnapshot = "snapshot"
	EventScore    = "score"
	EventMessage  = "message"
	EventStatus   = "status"
	EventState    = "state"
	EventPhase    = "phase"
)

// Event is one update pushed to dashboard clients
type Event struct {
	Type     string            `json:"type"`
	Time     time.Time         `json:"time"`
	Score    int               `json:"score,omitempty"`
	Message  *MessageView      `json:"message,omitempty"`
	Status   string            `json:"status,omitempty"`
	State    string            `json:"state,omitempty"`
	Phase    string            `json:"phase,omitempty"`
	Text     string            `json:"text,omitempty"`
	Error    string            `json:"error,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
}

// MessageView is an expression message as shown on the dashboard
type MessageView struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	English  string `json:"english"`
	MinScore int    `json:"min_score"`
}

func viewOf(id expression.MessageID) *MessageView {
	return &MessageView{
		ID:       id.String(),
		Text:     id.Text(),
		English:  id.English(),
		MinScore: id.MinScore(),
	}
}

// Status texts shown under the camera view
const (
	TextLoadingModels  = "모델을 로딩하는 중..."
	TextStartingCamera = "카메라 시작 중..."
	TextAlignFace      = "얼굴을 카메라에 맞춰주세요"
	TextNoFace         = "얼굴이 감지되지 않았습니다"
	TextDetectionError = "얼굴 감지 중 오류가 발생했습니다"
	TextModelError     = "모델 로드 중 오류가 발생했습니다: "
	TextCameraError    = "카메라 접근에 실패했습니다: "
)

// StatusText returns the camera caption for a cycle status.
func StatusText(s session.Status) string {
	switch s {
	case session.StatusNoFaceDetected:
		return TextNoFace
	case session.StatusDetectionError:
		return TextDetectionError
	default:
		return ""
	}
}

// PhaseText returns the camera caption for an initialization step.
func PhaseText(p session.Phase) string {
	switch p {
	case session.PhaseLoadingModels:
		return TextLoadingModels
	case session.PhaseStartingCamera:
		return TextStartingCamera
	default:
		return ""
	}
}

// SnapshotText returns the caption for a session snapshot, as shown to a
// viewer that joins mid-session.
func SnapshotText(snap session.Snapshot) string {
	if snap.State == session.StateInitializing && snap.Phase != session.PhaseNone {
		return PhaseText(snap.Phase)
	}
	return StateText(snap.State, snap.Err)
}

// StateText returns the camera caption for a lifecycle transition.
func StateText(state session.State, err error) string {
	switch state {
	case session.StateInitializing:
		return TextLoadingModels
	case session.StateRunning:
		return TextAlignFace
	case session.StateError:
		switch {
		case errors.Is(err, session.ErrModelLoad):
			return TextModelError + err.Error()
		case errors.Is(err, session.ErrCamera):
			return TextCameraError + err.Error()
		default:
			return TextDetectionError
		}
	default:
		return ""
	}
}

// Broadcaster publishes session events to a hub. It implements
// session.Listener, session.StateListener and session.PhaseListener.
type Broadcaster struct {
	hub    *hub.Hub
	now    func() time.Time
	logger *slog.Logger
}

// NewBroadcaster creates a broadcaster writing to h.
func NewBroadcaster(h *hub.Hub) *Broadcaster {
	return &Broadcaster{
		hub:    h,
		now:    time.Now,
		logger: log.With("component", "web"),
	}
}

func (b *Broadcaster) publish(e Event) {
	e.Time = b.now()
	if err := b.hub.BroadcastJSON(e); err != nil {
		b.logger.Warn("event not published", "type", e.Type, "error", err)
	}
}

// OnScoreUpdate implements session.Listener.
func (b *Broadcaster) OnScoreUpdate(score int) {
	b.publish(Event{Type: EventScore, Score: score})
}

// OnMessageUpdate implements session.Listener.
func (b *Broadcaster) OnMessageUpdate(id expression.MessageID) {
	b.publish(Event{Type: EventMessage, Message: viewOf(id)})
}

// OnStatus implements session.Listener.
func (b *Broadcaster) OnStatus(s session.Status) {
	b.publish(Event{Type: EventStatus, Status: s.String(), Text: StatusText(s)})
}

// OnStateChange implements session.StateListener.
func (b *Broadcaster) OnStateChange(state session.State, err error) {
	e := Event{Type: EventState, State: state.String(), Text: StateText(state, err)}
	if err != nil {
		e.Error = err.Error()
	}
	b.publish(e)
}

// OnPhase implements session.PhaseListener.
func (b *Broadcaster) OnPhase(p session.Phase) {
	b.publish(Event{Type: EventPhase, State: session.StateInitializing.String(), Phase: p.String(), Text: PhaseText(p)})
}
