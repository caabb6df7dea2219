package render

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/medallion-map/backend/internal/geo"
	"github.com/medallion-map/backend/internal/models"
	"github.com/medallion-map/backend/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func europe() *geo.FeatureCollection {
	return &geo.FeatureCollection{Features: []geo.Feature{
		{Name: "Europe", Polygons: []geo.Polygon{{{{-10, 35}, {30, 35}, {30, 60}, {-10, 60}, {-10, 35}}}}},
	}}
}

func records() []models.Record {
	return []models.Record{
		models.NewRecord(0, 2, map[string]string{"location": "Paris", "longitude": "2.35", "latitude": "48.85", "duration": "10", "start_year": "1800", "end_year": "1810"}),
		models.NewRecord(1, 3, map[string]string{"location": "Rome & <Vatican>", "longitude": "12.49", "latitude": "41.89", "duration": "20", "start_year": "1810", "end_year": "1820"}),
	}
}

func TestWriteSVG_WellFormed(t *testing.T) {
	s := scene.Build(records(), europe(), nil, scene.Options{})
	out, err := SVG(s)
	require.NoError(t, err)

	dec := xml.NewDecoder(strings.NewReader(string(out)))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.Equal(t, "EOF", err.Error())
			break
		}
	}

	doc := string(out)
	assert.True(t, strings.HasPrefix(doc, `<svg xmlns="http://www.w3.org/2000/svg" width="540" height="440"`))
	assert.Equal(t, 2, strings.Count(doc, `class="medallion"`))
	assert.Contains(t, doc, `<clipPath id="circle-clip-0"><circle cx="135" cy="200" r="125"/></clipPath>`)
	assert.Contains(t, doc, `<clipPath id="circle-clip-1"><circle cx="135" cy="200" r="250"/></clipPath>`)
	assert.Contains(t, doc, `r="124" fill="#419AD1"`)
	assert.Contains(t, doc, `Rome &amp; &lt;Vatican&gt;`)
	assert.NotContains(t, doc, "NaN")
}

func TestWriteSVG_AxisTicks(t *testing.T) {
	s := scene.Build(records(), nil, nil, scene.Options{})
	out, err := SVG(s)
	require.NoError(t, err)
	doc := string(out)

	assert.Equal(t, 2, strings.Count(doc, `class="tick"`))
	first := strings.Index(doc, ">1800 - 1810<")
	second := strings.Index(doc, ">1810 - 1820<")
	require.True(t, first > 0 && second > 0)
	assert.Less(t, first, second)
	assert.Contains(t, doc, `<g class="x-axis" transform="translate(135,400)"`)
}

func TestWriteSVG_LabelsAfterPanels(t *testing.T) {
	s := scene.Build(records(), europe(), nil, scene.Options{})
	out, err := SVG(s)
	require.NoError(t, err)
	doc := string(out)

	lastPanel := strings.LastIndex(doc, `class="medallion"`)
	firstLabel := strings.Index(doc, `class="location"`)
	assert.Greater(t, firstLabel, lastPanel)
}

func TestWriteSVG_Empty(t *testing.T) {
	out, err := SVG(scene.Build(nil, nil, nil, scene.Options{}))
	require.NoError(t, err)
	doc := string(out)
	assert.NotContains(t, doc, "medallion")
	assert.NotContains(t, doc, "domain")
	assert.True(t, strings.HasSuffix(doc, "</svg>"))
}

func TestWriteSVG_Degenerate(t *testing.T) {
	recs := []models.Record{
		models.NewRecord(0, 2, map[string]string{"location": "??", "longitude": "x", "latitude": "y", "duration": "1"}),
	}
	out, err := SVG(scene.Build(recs, europe(), nil, scene.Options{}))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "NaN")
	assert.NotContains(t, string(out), "<line x1")
}
