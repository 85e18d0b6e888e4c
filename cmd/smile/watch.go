package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smile/pkg/smile"
)

var watchURL string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live score events from a running dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := watchURL
		if url == "" {
			url = "ws://" + displayAddr(settings.Addr) + "/ws/score"
		}
		return smile.Watch(cmd.Context(), url, os.Stdout)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "Score websocket URL (default from SMILE_ADDR)")
}
