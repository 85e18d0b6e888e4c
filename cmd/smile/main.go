// smile scores facial expressions from a webcam on a smile-to-frown scale.
//
// Commands:
//
//	smile serve            run the detection loop behind the web dashboard
//	smile analyze <image>  score a still image once
//	smile watch            print live events from a running dashboard
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smile/internal/config"
	"github.com/teslashibe/go-smile/internal/log"
)

// Version is the application version.
const Version = "0.1.0"

var (
	envFile  string
	logLevel string
	settings config.Config
)

var rootCmd = &cobra.Command{
	Use:           "smile",
	Short:         "Webcam smile/frown expression scorer",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(envFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			settings.LogLevel = logLevel
		}
		log.Setup(log.Options{
			Level: settings.LogLevel,
			File:  settings.LogFile,
			JSON:  settings.LogJSON,
		})
		return nil
	},
}

func main() {
	// Cancel on Ctrl+C (SIGINT) or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to an optional .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides SMILE_LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, analyzeCmd, watchCmd)
}
