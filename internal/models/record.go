package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Recognised CSV columns.
const (
	ColumnLocation  = "location"
	ColumnLongitude = "longitude"
	ColumnLatitude  = "latitude"
	ColumnDuration  = "duration"
	ColumnStartYear = "start_year"
	ColumnEndYear   = "end_year"
)

// Record is one parsed CSV row, the unit of rendering.
// Index is its position in the parsed sequence and the only ordering key.
type Record struct {
	Index     int               `json:"index" msgpack:"index"`
	Line      int               `json:"line" msgpack:"line"`
	Fields    map[string]string `json:"fields" msgpack:"fields"`
	Location  string            `json:"location" msgpack:"location"`
	Longitude float64           `json:"longitude" msgpack:"longitude"`
	Latitude  float64           `json:"latitude" msgpack:"latitude"`
	Duration  float64           `json:"duration" msgpack:"duration"`
	StartYear string            `json:"startYear" msgpack:"startYear"`
	EndYear   string            `json:"endYear" msgpack:"endYear"`
}

// NewRecord builds a Record from its named fields, coercing the numeric columns.
// Coordinates that do not parse become NaN; duration falls back to zero.
func NewRecord(index, line int, fields map[string]string) Record {
	r := Record{
		Index:     index,
		Line:      line,
		Fields:    fields,
		Location:  fields[ColumnLocation],
		Longitude: coerceField(fields, ColumnLongitude),
		Latitude:  coerceField(fields, ColumnLatitude),
		StartYear: fields[ColumnStartYear],
		EndYear:   fields[ColumnEndYear],
	}
	r.Duration = CoerceFloat(fields[ColumnDuration])
	if math.IsNaN(r.Duration) || math.IsInf(r.Duration, 0) || r.Duration < 0 {
		r.Duration = 0
	}
	return r
}

// Field returns the raw text of a header-named column, or "" if absent.
func (r Record) Field(name string) string {
	return r.Fields[name]
}

// HasCoordinate reports whether both coordinates are finite numbers.
func (r Record) HasCoordinate() bool {
	return isFinite(r.Longitude) && isFinite(r.Latitude)
}

// MarshalJSON writes non-finite coordinates as null.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return json.Marshal(struct {
		plain
		Longitude *float64 `json:"longitude"`
		Latitude  *float64 `json:"latitude"`
	}{plain(r), finiteOrNil(r.Longitude), finiteOrNil(r.Latitude)})
}

func finiteOrNil(f float64) *float64 {
	if !isFinite(f) {
		return nil
	}
	return &f
}

// YearRange is the axis label for the record.
func (r Record) YearRange() string {
	return r.StartYear + " - " + r.EndYear
}

// CoerceFloat converts text to a float the way a numeric cast of a form field would:
// surrounding whitespace is ignored, blank text is 0 and anything else that is not a
// number is NaN.
func CoerceFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// coerceField is CoerceFloat of a named field; a field the row does not have is NaN.
func coerceField(fields map[string]string, name string) float64 {
	raw, ok := fields[name]
	if !ok {
		return math.NaN()
	}
	return CoerceFloat(raw)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
