package main

import (
	"os"

	"github.com/medallion-map/backend/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Logging related
	debug bool

	rootCmd = &cobra.Command{
		Use:   "medallion",
		Short: "Render CSV journeys as rows of circular map medallions",
		Long: `medallion renders a CSV file of places into an SVG row of circular world-map
medallions, one per row, sized by duration and labelled along a year-range axis.

Examples:
  medallion render --in trip.csv --out trip.svg
  medallion render --in trip.csv --geo world.geojson --format json
  medallion theme > theme.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if debug {
				level = zerolog.DebugLevel
			}
			logging.SetDefault(logging.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, level))
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
