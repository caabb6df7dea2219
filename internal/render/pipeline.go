package render

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/medallion-map/backend/internal/geo"
	"github.com/medallion-map/backend/internal/geodata"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/parser"
	"github.com/medallion-map/backend/internal/scene"
)

// ThemeProvider supplies the theme in effect for a render.
type ThemeProvider interface {
	Theme() *models.Theme
}

// StaticTheme always returns the same theme.
type StaticTheme struct {
	Value *models.Theme
}

// Theme implements ThemeProvider.
func (s StaticTheme) Theme() *models.Theme {
	if s.Value == nil {
		return models.DefaultTheme()
	}
	return s.Value
}

// Result is everything one render produced.
type Result struct {
	Records *models.RecordSet
	Scene   *scene.Scene
	SVG     []byte
	Elapsed time.Duration
}

// Pipeline runs parse, geography fetch, scene build and SVG commit.
type Pipeline struct {
	geography geodata.Source
	themes    ThemeProvider
}

// NewPipeline creates a render pipeline.
func NewPipeline(geography geodata.Source, themes ThemeProvider) *Pipeline {
	if themes == nil {
		themes = StaticTheme{}
	}
	return &Pipeline{geography: geography, themes: themes}
}

// Parse turns raw CSV text into records.
func (p *Pipeline) Parse(content []byte) (*models.RecordSet, error) {
	return parser.ParseRecords(bytes.NewReader(content))
}

// Run parses content and renders it.
func (p *Pipeline) Run(ctx context.Context, content []byte, opts scene.Options) (*Result, error) {
	set, err := p.Parse(content)
	if err != nil {
		return nil, err
	}
	return p.Render(ctx, set, opts)
}

// StageFunc is told when a render moves to the next stage.
type StageFunc func(models.PanelState)

// Render builds and commits the scene for an already parsed record set. An empty
// set renders an empty row without touching the geography source.
func (p *Pipeline) Render(ctx context.Context, set *models.RecordSet, opts scene.Options) (*Result, error) {
	return p.RenderWithProgress(ctx, set, opts, nil)
}

// RenderWithProgress is Render reporting the fetching and rendering stages to progress.
func (p *Pipeline) RenderWithProgress(ctx context.Context, set *models.RecordSet, opts scene.Options, progress StageFunc) (*Result, error) {
	if progress == nil {
		progress = func(models.PanelState) {}
	}
	log := logging.For("render")
	start := time.Now()
	theme := p.themes.Theme()

	world := &geo.FeatureCollection{}
	if set.Len() > 0 {
		progress(models.PanelStateFetching)
		fc, err := p.geography.World(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, &RenderError{
				Stage:  StageGeography,
				Reason: "world map data could not be loaded, try again later",
				Err:    err,
			}
		}
		world = fc
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress(models.PanelStateRendering)
	s := scene.Build(set.Records, world, theme, opts)
	svg, err := SVG(s)
	if err != nil {
		return nil, &RenderError{Stage: StageCommit, Reason: "failed to write svg", Err: err}
	}

	res := &Result{
		Records: set,
		Scene:   s,
		SVG:     svg,
		Elapsed: time.Since(start),
	}
	log.Debug().
		Int("records", set.Len()).
		Int("elements", s.ElementCount()).
		Int("bytes", len(svg)).
		Dur("elapsed", res.Elapsed).
		Msg("render complete")
	return res, nil
}
