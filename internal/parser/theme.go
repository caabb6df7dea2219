package parser

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/medallion-map/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ParseTheme parses a YAML theme file. Keys left out keep their default value.
func ParseTheme(filePath string) (*models.Theme, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseThemeFromReader(file)
}

// ParseThemeFromReader parses a theme from an io.Reader.
func ParseThemeFromReader(r io.Reader) (*models.Theme, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	theme := models.DefaultTheme()
	if err := yaml.Unmarshal(data, theme); err != nil {
		return nil, fmt.Errorf("invalid theme yaml: %w", err)
	}
	if err := ValidateTheme(theme); err != nil {
		return nil, err
	}

	return theme, nil
}

// MarshalTheme serialises a theme back to YAML.
func MarshalTheme(theme *models.Theme) ([]byte, error) {
	return yaml.Marshal(theme)
}

// ValidateTheme rejects geometry that cannot produce a drawable row.
func ValidateTheme(t *models.Theme) error {
	numbers := []struct {
		name  string
		value float64
	}{
		{"panel_width", t.PanelWidth},
		{"panel_height", t.PanelHeight},
		{"projection_scale", t.ProjectionScale},
		{"max_clip_radius", t.MaxClipRadius},
		{"ocean.stroke_width", t.Ocean.StrokeWidth},
		{"land.stroke_width", t.Land.StrokeWidth},
		{"crosshair.half_size", t.Crosshair.HalfSize},
		{"crosshair.stroke_width", t.Crosshair.StrokeWidth},
		{"label.offset_x", t.Label.OffsetX},
		{"label.offset_y", t.Label.OffsetY},
		{"axis.height", t.Axis.Height},
		{"axis.stroke_width", t.Axis.StrokeWidth},
		{"axis.tick_size", t.Axis.TickSize},
	}
	for _, n := range numbers {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return fmt.Errorf("%s must be a finite number", n.name)
		}
	}

	switch {
	case t.PanelWidth <= 0:
		return fmt.Errorf("panel_width must be positive")
	case t.PanelHeight <= 0:
		return fmt.Errorf("panel_height must be positive")
	case t.ProjectionScale <= 0:
		return fmt.Errorf("projection_scale must be positive")
	case t.MaxClipRadius < 0:
		return fmt.Errorf("max_clip_radius must not be negative")
	case t.Crosshair.HalfSize < 0:
		return fmt.Errorf("crosshair.half_size must not be negative")
	case t.Axis.Height < 0:
		return fmt.Errorf("axis.height must not be negative")
	}
	return nil
}
