// Package scene turns a record set and the world geography into an explicit scene
// graph. Building is pure: nothing here draws, so layout and scale math can be
// checked without a renderer.
package scene

import "github.com/medallion-map/backend/internal/geo"

// Scene is the complete description of one medallion row.
type Scene struct {
	Width      float64 `json:"width" msgpack:"width"`
	Height     float64 `json:"height" msgpack:"height"`
	ClipPrefix string  `json:"clipPrefix" msgpack:"clipPrefix"`
	Panels     []Panel `json:"panels" msgpack:"panels"`
	Labels     []Label `json:"labels" msgpack:"labels"`
	Axis       Axis    `json:"axis" msgpack:"axis"`
}

// Panel is the fixed-size sub-panel of one record. Coordinates inside a panel are
// local; OffsetX places the panel in the row.
type Panel struct {
	Index      int        `json:"index" msgpack:"index"`
	OffsetX    float64    `json:"offsetX" msgpack:"offsetX"`
	Center     geo.Point  `json:"center" msgpack:"center"`
	Coordinate [2]float64 `json:"coordinate" msgpack:"coordinate"`
	Projected  geo.Point  `json:"projected" msgpack:"projected"`
	ClipID     string     `json:"clipId" msgpack:"clipId"`
	ClipRadius float64    `json:"clipRadius" msgpack:"clipRadius"`
	Background Circle     `json:"background" msgpack:"background"`
	Land       []Path     `json:"land" msgpack:"land"`
	Crosshair  []Line     `json:"crosshair" msgpack:"crosshair"`
	Degenerate bool       `json:"degenerate,omitempty" msgpack:"degenerate,omitempty"`
}

// Circle is a filled disc.
type Circle struct {
	CX          float64 `json:"cx" msgpack:"cx"`
	CY          float64 `json:"cy" msgpack:"cy"`
	R           float64 `json:"r" msgpack:"r"`
	Fill        string  `json:"fill" msgpack:"fill"`
	Stroke      string  `json:"stroke,omitempty" msgpack:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth" msgpack:"strokeWidth"`
}

// Path is one projected landmass feature.
type Path struct {
	Name   string `json:"name,omitempty" msgpack:"name,omitempty"`
	D      string `json:"d" msgpack:"d"`
	Fill   string `json:"fill" msgpack:"fill"`
	Stroke string `json:"stroke" msgpack:"stroke"`
}

// Line is a straight stroke.
type Line struct {
	X1          float64 `json:"x1" msgpack:"x1"`
	Y1          float64 `json:"y1" msgpack:"y1"`
	X2          float64 `json:"x2" msgpack:"x2"`
	Y2          float64 `json:"y2" msgpack:"y2"`
	Stroke      string  `json:"stroke" msgpack:"stroke"`
	StrokeWidth float64 `json:"strokeWidth" msgpack:"strokeWidth"`
}

// Label is text in row coordinates.
type Label struct {
	Index    int     `json:"index" msgpack:"index"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Text     string  `json:"text" msgpack:"text"`
	Fill     string  `json:"fill" msgpack:"fill"`
	FontSize string  `json:"fontSize" msgpack:"fontSize"`
}

// Axis is the shared bottom axis of the row.
type Axis struct {
	OffsetX     float64 `json:"offsetX" msgpack:"offsetX"`
	Y           float64 `json:"y" msgpack:"y"`
	Width       float64 `json:"width" msgpack:"width"`
	TickSize    float64 `json:"tickSize" msgpack:"tickSize"`
	Color       string  `json:"color" msgpack:"color"`
	FontSize    string  `json:"fontSize" msgpack:"fontSize"`
	StrokeWidth float64 `json:"strokeWidth" msgpack:"strokeWidth"`
	Ticks       []Tick  `json:"ticks" msgpack:"ticks"`
}

// Tick is one axis tick; X is relative to the axis origin.
type Tick struct {
	Index int     `json:"index" msgpack:"index"`
	X     float64 `json:"x" msgpack:"x"`
	Label string  `json:"label" msgpack:"label"`
}

// ElementCount is the number of drawable elements, used in logs and tests.
func (s *Scene) ElementCount() int {
	n := len(s.Labels) + len(s.Axis.Ticks)
	for _, p := range s.Panels {
		n += 1 + len(p.Land) + len(p.Crosshair)
	}
	return n
}
