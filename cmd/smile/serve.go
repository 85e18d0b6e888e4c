package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smile/pkg/smile"
)

var serveOpts struct {
	addr      string
	device    string
	platform  string
	fps       float64
	sidecar   string
	autoStart bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection loop behind the web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := smile.Config{Config: settings, AutoStart: serveOpts.autoStart}

		// Flags override the environment.
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Addr = serveOpts.addr
		}
		if flags.Changed("camera") {
			cfg.Device = serveOpts.device
		}
		if flags.Changed("platform") {
			cfg.Config.Platform = serveOpts.platform
		}
		if flags.Changed("fps") {
			cfg.FrameRate = serveOpts.fps
		}
		if flags.Changed("sidecar") {
			cfg.Sidecar = serveOpts.sidecar
		}

		app, err := smile.New(cfg)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := app.Init(); err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		defer app.Shutdown()

		fmt.Printf("😊 Smile dashboard: http://%s\n", displayAddr(cfg.Addr))
		return app.Run(cmd.Context())
	},
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", "", "Listen address (overrides SMILE_ADDR)")
	f.StringVar(&serveOpts.device, "camera", "", "Camera index or device path (overrides SMILE_CAMERA)")
	f.StringVar(&serveOpts.platform, "platform", "", "Camera preset: desktop, mobile, ios, android")
	f.Float64Var(&serveOpts.fps, "fps", 0, "Detection cycles per second, 0 for unpaced (overrides SMILE_FPS)")
	f.StringVar(&serveOpts.sidecar, "sidecar", "", "Unix socket of an external landmark service")
	f.BoolVar(&serveOpts.autoStart, "start", true, "Start detection immediately")
}
