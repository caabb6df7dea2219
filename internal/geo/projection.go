package geo

import "math"

// MaxLatitude is where the Mercator square world ends; poles project to infinity.
const MaxLatitude = 85.0511287798066

// Point is a position in panel pixels.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Finite reports whether both components are finite.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Mercator is a spherical Mercator projection whose center coordinate lands on the
// translate point. Y grows downwards, as in SVG.
type Mercator struct {
	scale     float64
	translate Point
	cx, cy    float64
}

// NewMercator builds a projection centered on center at the given scale.
func NewMercator(center Position, scale float64, translate Point) *Mercator {
	cx, cy := mercatorRaw(center[0], center[1])
	return &Mercator{
		scale:     scale,
		translate: translate,
		cx:        cx,
		cy:        cy,
	}
}

// Project maps a longitude/latitude to panel pixels.
func (m *Mercator) Project(p Position) Point {
	x, y := mercatorRaw(p[0], p[1])
	return Point{
		X: m.translate.X + m.scale*(x-m.cx),
		Y: m.translate.Y - m.scale*(y-m.cy),
	}
}

func mercatorRaw(lon, lat float64) (float64, float64) {
	lat = clampLatitude(lat)
	lambda := lon * math.Pi / 180
	phi := lat * math.Pi / 180
	return lambda, math.Log(math.Tan(math.Pi/4 + phi/2))
}

func clampLatitude(lat float64) float64 {
	if lat > MaxLatitude {
		return MaxLatitude
	}
	if lat < -MaxLatitude {
		return -MaxLatitude
	}
	return lat
}
