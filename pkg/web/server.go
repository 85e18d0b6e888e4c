// Package web provides the real-time expression dashboard
package web

import (
	"context"
	"embed"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-smile/internal/log"
	"github.com/teslashibe/go-smile/pkg/camera"
	"github.com/teslashibe/go-smile/pkg/hub"
	"github.com/teslashibe/go-smile/pkg/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed static
var static embed.FS

// Controller is the session surface driven by the dashboard.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Retry(ctx context.Context) error
	Reset()
	Snapshot() session.Snapshot
}

// Server is the web dashboard server
type Server struct {
	app     *fiber.App
	addr    string
	logger  *slog.Logger
	baseCtx context.Context

	session Controller
	cameras *camera.Manager

	// Hubs for websocket broadcast
	scoreHub  *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates a new dashboard server. cameras may be nil, which
// disables the camera API. ctl may be set later with SetController.
func NewServer(addr string, ctl Controller, cameras *camera.Manager) *Server {
	s := &Server{
		addr:      addr,
		logger:    log.With("component", "web"),
		baseCtx:   context.Background(),
		session:   ctl,
		cameras:   cameras,
		scoreHub:  hub.New("score"),
		cameraHub: hub.New("camera", hub.WithReplay()),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Smile Dashboard",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/messages", s.handleMessages)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/stop", s.handleStop)
	api.Post("/session/retry", s.handleRetry)
	api.Post("/session/reset", s.handleReset)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/score", websocket.New(s.handleScoreWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	// Dashboard page
	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(static),
		PathPrefix: "static",
	}))

	s.app = app
	return s
}

// SetController sets the session driven by the API. Call it before serving.
func (s *Server) SetController(ctl Controller) {
	s.session = ctl
}

// Listener returns the session listener that feeds /ws/score.
func (s *Server) Listener() *Broadcaster {
	return NewBroadcaster(s.scoreHub)
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves the dashboard on ln until ctx is cancelled. Sessions started
// from the API live as long as ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx

	// Start all hubs
	go s.scoreHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()
	s.logger.Info("dashboard listening", "url", "http://"+ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}

// SendCameraFrame sends a camera frame to all connected clients
func (s *Server) SendCameraFrame(jpegData []byte) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	if err := s.cameraHub.BroadcastBinary(jpegData); err != nil {
		s.logger.Debug("camera frame dropped", "error", err)
	}
}

// App exposes the fiber app for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}
