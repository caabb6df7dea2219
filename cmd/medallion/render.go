package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/medallion-map/backend/internal/geodata"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/parser"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/scene"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// Render command flags
	renderIn            string
	renderOut           string
	renderGeo           string
	renderGeoURL        string
	renderTheme         string
	renderFormat        string
	renderClipPrefix    string
	renderKeepOffscreen bool
	renderTimeout       time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a CSV file to SVG",
	Long: `Parses a CSV file with location, longitude, latitude, duration, start_year and
end_year columns and writes the medallion row as SVG, or the scene graph as JSON
or MessagePack.`,
	RunE: runRender,
}

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Print the default theme as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parser.MarshalTheme(models.DefaultTheme())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(themeCmd)

	renderCmd.Flags().StringVarP(&renderIn, "in", "i", "-",
		"Input CSV file (- for stdin)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "-",
		"Output file (- for stdout)")
	renderCmd.Flags().StringVar(&renderGeo, "geo", "",
		"Local GeoJSON world file (skips the download)")
	renderCmd.Flags().StringVar(&renderGeoURL, "geo-url", geodata.DefaultURL,
		"GeoJSON world URL")
	renderCmd.Flags().StringVar(&renderTheme, "theme", "",
		"Theme YAML file")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "svg",
		"Output format (svg, json, msgpack)")
	renderCmd.Flags().StringVar(&renderClipPrefix, "clip-prefix", scene.DefaultClipPrefix,
		"Prefix of clip-path ids")
	renderCmd.Flags().BoolVar(&renderKeepOffscreen, "keep-offscreen", false,
		"Keep land features outside the medallion")
	renderCmd.Flags().DurationVar(&renderTimeout, "timeout", 30*time.Second,
		"Geography download timeout")
}

func runRender(cmd *cobra.Command, args []string) error {
	log := logging.For("cli")

	switch renderFormat {
	case "svg", "json", "msgpack":
	default:
		return fmt.Errorf("unknown format %q (want svg, json or msgpack)", renderFormat)
	}

	content, err := readInput(cmd, renderIn)
	if err != nil {
		return err
	}

	theme := models.DefaultTheme()
	if renderTheme != "" {
		theme, err = parser.ParseTheme(renderTheme)
		if err != nil {
			return fmt.Errorf("loading theme: %w", err)
		}
	}

	var source geodata.Source
	if renderGeo != "" {
		world, err := geodata.LoadFile(renderGeo)
		if err != nil {
			return fmt.Errorf("loading geography: %w", err)
		}
		source = geodata.Static{Collection: world}
	} else {
		source = geodata.NewClient(geodata.Options{URL: renderGeoURL, Timeout: renderTimeout})
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), renderTimeout+5*time.Second)
	defer cancel()

	pipeline := render.NewPipeline(source, render.StaticTheme{Value: theme})
	res, err := pipeline.Run(ctx, content, scene.Options{
		ClipPrefix:    renderClipPrefix,
		KeepOffscreen: renderKeepOffscreen,
	})
	if err != nil {
		return err
	}

	for _, issue := range res.Records.Issues {
		log.Warn().Int("line", issue.Line).Str("column", issue.Column).Str("value", issue.Value).Msg(issue.Reason)
	}

	var out []byte
	switch renderFormat {
	case "json":
		out, err = sonic.ConfigStd.MarshalIndent(res.Scene, "", "  ")
	case "msgpack":
		out, err = msgpack.Marshal(res.Scene)
	default:
		out = res.SVG
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", renderFormat, err)
	}

	log.Debug().
		Int("records", res.Records.Len()).
		Int("bytes", len(out)).
		Dur("elapsed", res.Elapsed).
		Msg("rendered")

	return writeOutput(cmd, renderOut, out)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
