package scene

import (
	"fmt"
	"math"

	"github.com/medallion-map/backend/internal/geo"
	"github.com/medallion-map/backend/internal/models"
)

// DefaultClipPrefix names clip paths when the caller does not need unique ids.
const DefaultClipPrefix = "circle-clip"

// Options tune a single build.
type Options struct {
	// ClipPrefix keeps clip-path ids unique when several rows share a document.
	ClipPrefix string
	// KeepOffscreen disables culling of features that miss the clip disc.
	KeepOffscreen bool
}

// Build lays out one panel per record, left to right in record order, followed by
// the shared axis. The clip radius scale is computed once over the whole set.
func Build(records []models.Record, world *geo.FeatureCollection, theme *models.Theme, opts Options) *Scene {
	if theme == nil {
		theme = models.DefaultTheme()
	}
	if opts.ClipPrefix == "" {
		opts.ClipPrefix = DefaultClipPrefix
	}

	n := len(records)
	s := &Scene{
		Width:      theme.PanelWidth * float64(n),
		Height:     theme.PanelHeight + theme.Axis.Height,
		ClipPrefix: opts.ClipPrefix,
		Panels:     make([]Panel, 0, n),
		Labels:     make([]Label, 0, n),
	}

	set := models.RecordSet{Records: records}
	radius := ClipRadiusScale(set.MaxDuration(), theme.MaxClipRadius)
	for i, rec := range records {
		panel, label := buildPanel(i, rec, world, theme, radius, opts)
		s.Panels = append(s.Panels, panel)
		s.Labels = append(s.Labels, label)
	}
	s.Axis = buildAxis(records, theme)
	return s
}

// ClipRadiusScale maps durations in [0, max duration] to radii in [0, maxRadius].
// When every duration is zero the result is a zero radius for all records.
func ClipRadiusScale(maxDuration, maxRadius float64) func(float64) float64 {
	if maxDuration <= 0 || math.IsNaN(maxDuration) {
		return func(float64) float64 { return 0 }
	}
	scale := geo.NewLinearScale(0, maxDuration, 0, maxRadius)
	return func(d float64) float64 {
		if math.IsNaN(d) || d <= 0 {
			return 0
		}
		return scale.Scale(d)
	}
}

func buildPanel(i int, rec models.Record, world *geo.FeatureCollection, theme *models.Theme, radius func(float64) float64, opts Options) (Panel, Label) {
	center := geo.Point{X: theme.PanelWidth / 2, Y: theme.PanelHeight / 2}
	offsetX := float64(i) * theme.PanelWidth
	r := radius(rec.Duration)

	p := Panel{
		Index:      i,
		OffsetX:    offsetX,
		Center:     center,
		ClipID:     fmt.Sprintf("%s-%d", opts.ClipPrefix, i),
		ClipRadius: r,
		Background: Circle{
			CX:          center.X,
			CY:          center.Y,
			R:           math.Max(0, r-1),
			Fill:        theme.Ocean.Fill,
			Stroke:      theme.Ocean.Stroke,
			StrokeWidth: theme.Ocean.StrokeWidth,
		},
	}

	label := Label{
		Index:    i,
		Text:     rec.Location,
		Fill:     theme.Label.Fill,
		FontSize: theme.Label.FontSize,
	}

	if !rec.HasCoordinate() {
		// Nothing can be projected: keep the disc and place the label as if the
		// coordinate sat in the middle of the panel.
		p.Degenerate = true
		p.Projected = center
		label.X = offsetX + center.X + theme.Label.OffsetX
		label.Y = center.Y + theme.Label.OffsetY
		return p, label
	}

	coord := geo.Position{rec.Longitude, rec.Latitude}
	proj := geo.NewMercator(coord, theme.ProjectionScale, center)
	at := proj.Project(coord)
	p.Coordinate = [2]float64{rec.Longitude, rec.Latitude}
	p.Projected = at

	if world != nil && r > 0 {
		p.Land = landPaths(world, proj, center, r, theme, opts.KeepOffscreen)
	}

	h := theme.Crosshair.HalfSize
	p.Crosshair = []Line{
		{X1: at.X - h, Y1: at.Y - h, X2: at.X + h, Y2: at.Y + h, Stroke: theme.Crosshair.Stroke, StrokeWidth: theme.Crosshair.StrokeWidth},
		{X1: at.X - h, Y1: at.Y + h, X2: at.X + h, Y2: at.Y - h, Stroke: theme.Crosshair.Stroke, StrokeWidth: theme.Crosshair.StrokeWidth},
	}

	label.X = offsetX + at.X + theme.Label.OffsetX
	label.Y = at.Y + theme.Label.OffsetY
	return p, label
}

func landPaths(world *geo.FeatureCollection, proj *geo.Mercator, center geo.Point, r float64, theme *models.Theme, keepAll bool) []Path {
	paths := make([]Path, 0)
	for _, f := range world.Features {
		d, bounds := geo.PathData(f.Polygons, proj)
		if d == "" {
			continue
		}
		if !keepAll && !bounds.IntersectsCircle(center, r) {
			continue
		}
		paths = append(paths, Path{
			Name:   f.Name,
			D:      d,
			Fill:   theme.Land.Fill,
			Stroke: theme.Land.Stroke,
		})
	}
	return paths
}

// buildAxis spreads one tick per record index across the row. The axis origin sits
// under the middle of the first panel.
func buildAxis(records []models.Record, theme *models.Theme) Axis {
	n := len(records)
	axis := Axis{
		OffsetX:     theme.PanelWidth / 2,
		Y:           theme.PanelHeight,
		TickSize:    theme.Axis.TickSize,
		Color:       theme.Axis.Color,
		FontSize:    theme.Axis.FontSize,
		StrokeWidth: theme.Axis.StrokeWidth,
		Ticks:       make([]Tick, 0, n),
	}
	if n == 0 {
		return axis
	}

	last := float64(n - 1)
	x := geo.NewLinearScale(0, last, 0, theme.PanelWidth*last)
	axis.Width = theme.PanelWidth * last
	for i, rec := range records {
		axis.Ticks = append(axis.Ticks, Tick{
			Index: i,
			X:     x.Scale(float64(i)),
			Label: rec.YearRange(),
		})
	}
	return axis
}
