package geo

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const worldFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "FRA", "properties": {"name": "France"},
     "geometry": {"type": "Polygon", "coordinates": [[[-4,43],[8,43],[8,51],[-4,51],[-4,43]]]}},
    {"type": "Feature", "properties": {"name": "Islands"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[10,10],[11,10],[11,11],[10,10]]],
        [[[20,20],[21,20],[21,21],[20,20]]]
     ]}},
    {"type": "Feature", "properties": {"name": "Pin"},
     "geometry": {"type": "Point", "coordinates": [1,1]}},
    {"type": "Feature", "properties": {}, "geometry": null}
  ]
}`

func TestDecodeFeatureCollection(t *testing.T) {
	fc, err := DecodeFeatureCollection([]byte(worldFixture))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	assert.Equal(t, "FRA", fc.Features[0].ID)
	assert.Equal(t, "France", fc.Features[0].Name)
	assert.Len(t, fc.Features[0].Polygons, 1)
	assert.Len(t, fc.Features[0].Polygons[0][0], 5)

	assert.Equal(t, "Islands", fc.Features[1].Name)
	assert.Len(t, fc.Features[1].Polygons, 2)
}

func TestDecodeFeatureCollection_Invalid(t *testing.T) {
	_, err := DecodeFeatureCollection([]byte(`{"type":"Feature"}`))
	assert.ErrorIs(t, err, ErrNotFeatureCollection)

	_, err = DecodeFeatureCollection([]byte(`<html>rate limited</html>`))
	assert.Error(t, err)
}

func TestDecodeFeatureCollection_CollectionsAndNumericIDs(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":250,"properties":{"ADMIN":"Mixed"},
	   "geometry":{"type":"GeometryCollection","geometries":[
	     {"type":"Point","coordinates":[0,0]},
	     {"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},
	     {"type":"MultiPolygon","coordinates":[[[[5,5],[6,5],[6,6],[5,5]]]]}
	   ]}}]}`

	fc, err := DecodeFeatureCollection([]byte(data))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "250", fc.Features[0].ID)
	assert.Equal(t, "Mixed", fc.Features[0].Name)
	assert.Len(t, fc.Features[0].Polygons, 2)
}

func TestMercator_CenterLandsOnTranslate(t *testing.T) {
	proj := NewMercator(Position{2.35, 48.85}, 800, Point{135, 200})
	pt := proj.Project(Position{2.35, 48.85})
	assert.InDelta(t, 135, pt.X, 1e-9)
	assert.InDelta(t, 200, pt.Y, 1e-9)

	// East is right, north is up.
	east := proj.Project(Position{3.35, 48.85})
	north := proj.Project(Position{2.35, 49.85})
	assert.InDelta(t, 135+800*math.Pi/180, east.X, 1e-9)
	assert.Less(t, north.Y, 200.0)
}

func TestMercator_ClampsPoles(t *testing.T) {
	proj := NewMercator(Position{0, 0}, 100, Point{0, 0})
	assert.True(t, proj.Project(Position{0, 90}).Finite())
	assert.Equal(t, proj.Project(Position{0, 90}), proj.Project(Position{0, MaxLatitude}))
	assert.False(t, proj.Project(Position{math.NaN(), 0}).Finite())
}

func TestLinearScale(t *testing.T) {
	s := NewLinearScale(0, 20, 0, 250)
	assert.Equal(t, 0.0, s.Scale(0))
	assert.Equal(t, 125.0, s.Scale(10))
	assert.Equal(t, 250.0, s.Scale(20))

	flat := NewLinearScale(0, 0, 0, 100)
	assert.Equal(t, 50.0, flat.Scale(7))
}

func TestPathData(t *testing.T) {
	fc, err := DecodeFeatureCollection([]byte(worldFixture))
	require.NoError(t, err)

	proj := NewMercator(Position{2, 47}, 800, Point{135, 200})
	d, bounds := PathData(fc.Features[0].Polygons, proj)

	assert.True(t, strings.HasPrefix(d, "M"))
	assert.True(t, strings.HasSuffix(d, "Z"))
	assert.Equal(t, 5, strings.Count(d, "M")+strings.Count(d, "L"))
	assert.True(t, bounds.IntersectsCircle(Point{135, 200}, 10))
	assert.False(t, bounds.IntersectsCircle(Point{135, 200}, 0))
}

func TestCutRing_AntimeridianCrossing(t *testing.T) {
	// A box straddling 180° seen from a center at 0° is split into two pieces.
	ring := Ring{{170, -10}, {-170, -10}, {-170, 10}, {170, 10}, {170, -10}}
	pieces := cutRing(ring)
	require.Len(t, pieces, 2)
	for _, piece := range pieces {
		for _, p := range piece {
			assert.GreaterOrEqual(t, p[0], -180.0)
			assert.LessOrEqual(t, p[0], 180.0)
		}
	}

}

func TestPathData_LandAcrossAntimeridianStaysAway(t *testing.T) {
	// Land just east of 180° seen from a medallion centered at 170°E projects a
	// whole world width to the west, outside the medallion.
	east := []Polygon{{Ring{{-175, -5}, {-165, -5}, {-165, 5}, {-175, 5}, {-175, -5}}}}
	proj := NewMercator(Position{170, 0}, 800, Point{135, 200})

	d, bounds := PathData(east, proj)
	require.NotEmpty(t, d)
	assert.False(t, bounds.IntersectsCircle(Point{135, 200}, 250))
	assert.Less(t, bounds.MaxX, 0.0)

	// Land just west of 180° is right next to it.
	west := []Polygon{{Ring{{172, -5}, {178, -5}, {178, 5}, {172, 5}, {172, -5}}}}
	_, bounds = PathData(west, proj)
	assert.True(t, bounds.IntersectsCircle(Point{135, 200}, 250))
}

func TestCutRing_PoleEncircling(t *testing.T) {
	ring := Ring{{-180, -80}, {-90, -75}, {0, -78}, {90, -75}, {180, -80}}
	pieces := cutRing(ring)
	require.NotEmpty(t, pieces)
	found := false
	for _, piece := range pieces {
		for _, p := range piece {
			if p[1] == -90 {
				found = true
			}
		}
	}
	assert.True(t, found, "ring around the south pole should be closed along the pole")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "135", FormatNumber(135))
	assert.Equal(t, "1.23", FormatNumber(1.2345))
	assert.Equal(t, "0", FormatNumber(-0.001))
	assert.Equal(t, "-12.5", FormatNumber(-12.5))
}
