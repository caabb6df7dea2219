// Package geo holds the geographic primitives of the medallion renderer: GeoJSON
// landmass features, the Mercator projection and SVG path generation.
package geo

import (
	"errors"
	"fmt"

	geojson "github.com/paulmach/go.geojson"
)

// Position is a longitude/latitude pair in degrees.
type Position [2]float64

// Ring is a closed linear ring.
type Ring []Position

// Polygon is an outer ring followed by its holes.
type Polygon []Ring

// Feature is one landmass outline reduced to its polygons.
type Feature struct {
	ID       string    `json:"id,omitempty" msgpack:"id,omitempty"`
	Name     string    `json:"name,omitempty" msgpack:"name,omitempty"`
	Polygons []Polygon `json:"polygons" msgpack:"polygons"`
}

// FeatureCollection is the decoded world geography shared by every panel.
type FeatureCollection struct {
	Features []Feature `json:"features"`
}

// ErrNotFeatureCollection is returned for JSON that is not a GeoJSON FeatureCollection.
var ErrNotFeatureCollection = errors.New("geojson: not a FeatureCollection")

// DecodeFeatureCollection decodes GeoJSON bytes. Point and line geometries are
// dropped since only areas are drawn.
func DecodeFeatureCollection(data []byte) (*FeatureCollection, error) {
	raw, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("geojson: %w", err)
	}
	if raw.Type != "FeatureCollection" {
		return nil, ErrNotFeatureCollection
	}

	fc := &FeatureCollection{Features: make([]Feature, 0, len(raw.Features))}
	for _, rf := range raw.Features {
		if rf == nil || rf.Geometry == nil {
			continue
		}
		polys := polygonsOf(rf.Geometry)
		if len(polys) == 0 {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			ID:       featureID(rf.ID),
			Name:     featureName(rf.Properties),
			Polygons: polys,
		})
	}
	return fc, nil
}

// polygonsOf flattens the areal parts of g, descending into collections.
func polygonsOf(g *geojson.Geometry) []Polygon {
	switch {
	case g.IsPolygon():
		return []Polygon{toPolygon(g.Polygon)}
	case g.IsMultiPolygon():
		polys := make([]Polygon, 0, len(g.MultiPolygon))
		for _, c := range g.MultiPolygon {
			polys = append(polys, toPolygon(c))
		}
		return polys
	case g.IsCollection():
		var polys []Polygon
		for _, child := range g.Geometries {
			if child != nil {
				polys = append(polys, polygonsOf(child)...)
			}
		}
		return polys
	default:
		return nil
	}
}

func toPolygon(coords [][][]float64) Polygon {
	poly := make(Polygon, 0, len(coords))
	for _, ringCoords := range coords {
		ring := make(Ring, 0, len(ringCoords))
		for _, c := range ringCoords {
			if len(c) < 2 {
				continue
			}
			ring = append(ring, Position{c[0], c[1]})
		}
		if len(ring) > 0 {
			poly = append(poly, ring)
		}
	}
	return poly
}

func featureID(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

func featureName(props map[string]interface{}) string {
	for _, key := range []string{"name", "NAME", "admin", "ADMIN"} {
		if s, ok := props[key].(string); ok {
			return s
		}
	}
	return ""
}
