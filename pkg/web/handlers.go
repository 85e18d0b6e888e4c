package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-smile/pkg/camera"
	"github.com/teslashibe/go-smile/pkg/expression"
	"github.com/teslashibe/go-smile/pkg/hub"
	"github.com/teslashibe/go-smile/pkg/session"
)

// StatusResponse is returned by the session endpoints
type StatusResponse struct {
	session.Snapshot
	Text     string       `json:"text"`
	Detail   *MessageView `json:"detail"`
	Viewers  int          `json:"viewers"`
	Cameras  int          `json:"camera_viewers"`
	Observed time.Time    `json:"observed"`
}

func (s *Server) status() StatusResponse {
	snap := s.session.Snapshot()
	return StatusResponse{
		Snapshot: snap,
		Text:     SnapshotText(snap),
		Detail:   viewOf(snap.Message),
		Viewers:  s.scoreHub.ClientCount(),
		Cameras:  s.cameraHub.ClientCount(),
		Observed: time.Now(),
	}
}

func errorJSON(c *fiber.Ctx, code int, err error) error {
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// handleStatus returns the current session snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleMessages returns the score bands and their messages
func (s *Server) handleMessages(c *fiber.Ctx) error {
	ids := expression.Messages()
	views := make([]*MessageView, len(ids))
	for i, id := range ids {
		views[i] = viewOf(id)
	}
	return c.JSON(views)
}

func (s *Server) sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, session.ErrAlreadyRunning), errors.Is(err, session.ErrNotIdle):
		return errorJSON(c, fiber.StatusConflict, err)
	case errors.Is(err, session.ErrInitialization):
		return errorJSON(c, fiber.StatusServiceUnavailable, err)
	default:
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
}

// handleStart starts detection. The loop outlives the request.
func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.session.Start(s.baseCtx); err != nil {
		s.logger.Warn("start failed", "error", err)
		return s.sessionError(c, err)
	}
	return c.JSON(s.status())
}

// handleStop stops detection
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.session.Stop()
	return c.JSON(s.status())
}

// handleRetry releases the camera and starts a fresh session
func (s *Server) handleRetry(c *fiber.Ctx) error {
	if err := s.session.Retry(s.baseCtx); err != nil {
		s.logger.Warn("retry failed", "error", err)
		return s.sessionError(c, err)
	}
	return c.JSON(s.status())
}

// handleReset clears an error and returns to idle
func (s *Server) handleReset(c *fiber.Ctx) error {
	s.session.Reset()
	return c.JSON(s.status())
}

// CameraResponse is returned by the camera endpoints
type CameraResponse struct {
	Config   camera.Config   `json:"config"`
	Presets  []string        `json:"presets"`
	Platform camera.Platform `json:"platform"` // Detected from the viewer's User-Agent
}

// handleGetCamera returns the camera configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("camera control not configured"))
	}
	return c.JSON(CameraResponse{
		Config:   s.cameras.GetConfig(),
		Presets:  camera.PresetNames(),
		Platform: camera.PlatformFromUserAgent(c.Get(fiber.HeaderUserAgent)),
	})
}

// handleUpdateCamera applies a partial camera update
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("camera control not configured"))
	}

	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := s.cameras.UpdateConfig(params); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	cfg := s.cameras.GetConfig()
	s.logger.Info("camera updated", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
	return c.JSON(CameraResponse{
		Config:   cfg,
		Presets:  camera.PresetNames(),
		Platform: camera.PlatformFromUserAgent(c.Get(fiber.HeaderUserAgent)),
	})
}

// handleScoreWS streams score, message, status and state events
func (s *Server) handleScoreWS(c *websocket.Conn) {
	// The pumps have not started yet, so this write is the only writer.
	snap := s.session.Snapshot()
	if err := c.WriteJSON(Event{Type: EventSnapshot, Time: time.Now(), Snapshot: &snap, Message: viewOf(snap.Message), Text: SnapshotText(snap)}); err != nil {
		return
	}

	client := hub.NewClient(s.scoreHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// handleCameraWS streams JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	client := hub.NewClient(s.cameraHub, c)
	if client == nil {
		return
	}
	client.Run()
}
