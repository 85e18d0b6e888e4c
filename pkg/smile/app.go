package smile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-smile/internal/log"
	"github.com/teslashibe/go-smile/pkg/camera"
	"github.com/teslashibe/go-smile/pkg/session"
	"github.com/teslashibe/go-smile/pkg/web"
)

// App is the smile dashboard application.
type App struct {
	config Config
	logger *slog.Logger

	// Vision
	cameras  *camera.Manager
	webcam   *camera.Webcam
	provider session.LandmarkProvider

	// Detection
	session *session.Session

	// Web dashboard
	webServer *web.Server
}

// New creates a new application with the given configuration.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.SessionConfig().Validate(); err != nil {
		return nil, err
	}
	return &App{
		config: cfg,
		logger: log.With("component", "app"),
	}, nil
}

// Init builds all components.
// Call this after New() and before Run().
func (a *App) Init() error {
	camCfg := a.config.CameraConfig()
	if errs := camCfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera config: %v", errs)
	}

	a.cameras = camera.NewManager(camCfg)
	a.webcam = camera.NewWebcam(camCfg)
	a.cameras.OnConfigChange = a.webcam.Apply
	a.provider = a.config.NewProvider()

	a.webServer = web.NewServer(a.config.Addr, nil, a.cameras)
	a.webcam.OnFrame = a.webServer.SendCameraFrame

	a.session = session.New(a.config.SessionConfig(), a.webcam, a.provider, a.webServer.Listener())
	a.webServer.SetController(a.session)

	a.logger.Info("initialized",
		"device", camCfg.Device,
		"platform", a.config.Platform(),
		"sidecar", a.config.Sidecar != "",
		"frame_rate", a.config.FrameRate)
	return nil
}

// Run serves the dashboard, optionally starting detection right away.
// Blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return errors.New("app not initialized")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.webServer.Run(ctx)
	})

	if a.config.AutoStart {
		g.Go(func() error {
			// Failures are shown on the dashboard, which offers retry.
			if err := a.session.Start(ctx); err != nil {
				a.logger.Error("auto start failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.session.Stop()
		<-a.session.Done()
		return nil
	})

	return g.Wait()
}

// Session returns the detection session.
func (a *App) Session() *session.Session {
	return a.session
}

// Shutdown releases the camera and the models.
func (a *App) Shutdown() {
	if a.webcam != nil {
		if err := a.webcam.Close(); err != nil {
			a.logger.Warn("close camera", "error", err)
		}
	}
	if a.provider != nil {
		if err := closeProvider(a.provider); err != nil {
			a.logger.Warn("close provider", "error", err)
		}
	}
	a.logger.Info("shut down")
}
