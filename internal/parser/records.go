package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/medallion-map/backend/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// requiredColumns must be present once the file has at least one data row.
var requiredColumns = []string{models.ColumnLongitude, models.ColumnLatitude}

// ParseRecords reads delimited text with a header line and returns one Record per
// subsequent line, in input order. Empty input yields an empty set.
func ParseRecords(r io.Reader) (*models.RecordSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Reason: "failed to read content", Err: err}
	}
	return ParseRecordsBytes(data)
}

// ParseRecordsBytes is ParseRecords over an in-memory buffer.
func ParseRecordsBytes(data []byte) (*models.RecordSet, error) {
	set := models.NewRecordSet()

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return set, nil
	}
	if !utf8.Valid(data) {
		return nil, &ParseError{Reason: "content is not UTF-8 text"}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, wrapCSVError("failed to read header", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	set.Header = header

	values := newValueIntern()
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError("malformed row", err)
		}
		if isBlankRow(row) {
			continue
		}

		line, _ := reader.FieldPos(0)
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				fields[name] = values.Intern(row[i])
			}
		}

		rec := models.NewRecord(len(set.Records), line, fields)
		set.Issues = append(set.Issues, coercionIssues(rec)...)
		set.Records = append(set.Records, rec)
	}

	if len(set.Records) > 0 {
		for _, col := range requiredColumns {
			if !set.HasColumn(col) {
				return nil, &ParseError{
					Line:   1,
					Column: col,
					Reason: fmt.Sprintf("missing required column %q", col),
				}
			}
		}
	}

	return set, nil
}

// coercionIssues reports the numeric fields of rec that could not be used as-is.
func coercionIssues(rec models.Record) []models.ParseIssue {
	var issues []models.ParseIssue
	if math.IsNaN(rec.Longitude) {
		issues = append(issues, issueFor(rec, models.ColumnLongitude, "longitude is not a number"))
	}
	if math.IsNaN(rec.Latitude) {
		issues = append(issues, issueFor(rec, models.ColumnLatitude, "latitude is not a number"))
	}
	if raw, ok := rec.Fields[models.ColumnDuration]; ok && strings.TrimSpace(raw) != "" {
		if d := models.CoerceFloat(raw); math.IsNaN(d) || d < 0 {
			issues = append(issues, issueFor(rec, models.ColumnDuration, "duration treated as zero"))
		}
	}
	return issues
}

func issueFor(rec models.Record, column, reason string) models.ParseIssue {
	return models.ParseIssue{
		Line:   rec.Line,
		Column: column,
		Value:  rec.Fields[column],
		Reason: reason,
	}
}

func isBlankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func wrapCSVError(reason string, err error) *ParseError {
	pe := &ParseError{Reason: reason, Err: err}
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		pe.Line = csvErr.Line
	}
	return pe
}
