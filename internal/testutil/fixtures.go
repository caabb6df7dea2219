package testutil

import "github.com/medallion-map/backend/internal/geo"

// TripCSV is a small well-formed journey.
const TripCSV = "location,longitude,latitude,duration,start_year,end_year\n" +
	"Paris,2.35,48.85,3,1900,1903\n" +
	"Rome,12.5,41.9,1,1903,1904\n"

// Europe returns a world containing one square feature covering western Europe.
func Europe() *geo.FeatureCollection {
	return &geo.FeatureCollection{
		Features: []geo.Feature{{
			ID:   "EUR",
			Name: "Europe",
			Polygons: []geo.Polygon{{
				geo.Ring{{-10, 35}, {30, 35}, {30, 60}, {-10, 60}, {-10, 35}},
			}},
		}},
	}
}
