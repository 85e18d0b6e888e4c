package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smile/pkg/smile"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>...",
	Short: "Score the expression in still images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := smile.Config{Config: settings}
		provider := cfg.NewProvider()
		if err := provider.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load models: %w", err)
		}
		if c, ok := provider.(interface{ Close() error }); ok {
			defer c.Close()
		}

		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		for _, path := range args {
			a, err := smile.AnalyzeFile(cmd.Context(), provider, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  %s: %v\n", path, err)
				continue
			}
			if analyzeJSON {
				if err := enc.Encode(a); err != nil {
					return err
				}
				continue
			}
			if !a.Found {
				fmt.Printf("%s: no face detected\n", path)
				continue
			}
			r := a.Result
			fmt.Printf("%s: %d %s (ratio %.2f, curve %.2f, thickness %.2f, adjustment %+d)\n",
				path, r.Score, r.Message.Text(),
				r.Features.MouthRatio, r.Features.LipCurve, r.Features.LipThickness, int(r.Adjustment))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print results as JSON")
}
