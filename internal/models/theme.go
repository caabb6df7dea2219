package models

// Theme holds every rendering constant of the medallion row.
type Theme struct {
	PanelWidth      float64 `json:"panelWidth" yaml:"panel_width"`
	PanelHeight     float64 `json:"panelHeight" yaml:"panel_height"`
	ProjectionScale float64 `json:"projectionScale" yaml:"projection_scale"`
	MaxClipRadius   float64 `json:"maxClipRadius" yaml:"max_clip_radius"`

	Ocean     ShapeStyle `json:"ocean" yaml:"ocean"`
	Land      ShapeStyle `json:"land" yaml:"land"`
	Crosshair CrossStyle `json:"crosshair" yaml:"crosshair"`
	Label     TextStyle  `json:"label" yaml:"label"`
	Axis      AxisStyle  `json:"axis" yaml:"axis"`
}

// ShapeStyle is fill and stroke for a filled shape.
type ShapeStyle struct {
	Fill        string  `json:"fill" yaml:"fill"`
	Stroke      string  `json:"stroke" yaml:"stroke"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"stroke_width"`
}

// CrossStyle describes the "X" marker.
type CrossStyle struct {
	HalfSize    float64 `json:"halfSize" yaml:"half_size"`
	Stroke      string  `json:"stroke" yaml:"stroke"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"stroke_width"`
}

// TextStyle describes the location label.
type TextStyle struct {
	Fill     string  `json:"fill" yaml:"fill"`
	FontSize string  `json:"fontSize" yaml:"font_size"`
	OffsetX  float64 `json:"offsetX" yaml:"offset_x"`
	OffsetY  float64 `json:"offsetY" yaml:"offset_y"`
}

// AxisStyle describes the shared year-range axis.
type AxisStyle struct {
	Height      float64 `json:"height" yaml:"height"`
	Color       string  `json:"color" yaml:"color"`
	FontSize    string  `json:"fontSize" yaml:"font_size"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"stroke_width"`
	TickSize    float64 `json:"tickSize" yaml:"tick_size"`
}

// DefaultTheme returns the stock medallion look.
func DefaultTheme() *Theme {
	return &Theme{
		PanelWidth:      270,
		PanelHeight:     400,
		ProjectionScale: 800,
		MaxClipRadius:   250,
		Ocean: ShapeStyle{
			Fill:        "#419AD1",
			Stroke:      "blue",
			StrokeWidth: 0,
		},
		Land: ShapeStyle{
			Fill:   "#9BD441",
			Stroke: "#fff",
		},
		Crosshair: CrossStyle{
			HalfSize:    5,
			Stroke:      "#79726B",
			StrokeWidth: 2,
		},
		Label: TextStyle{
			Fill:     "black",
			FontSize: "12px",
			OffsetX:  -135,
			OffsetY:  20,
		},
		Axis: AxisStyle{
			Height:      40,
			Color:       "#79726B",
			FontSize:    "15px",
			StrokeWidth: 3,
			TickSize:    6,
		},
	}
}
