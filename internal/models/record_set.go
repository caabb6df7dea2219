package models

// RecordSet is the ordered result of parsing one uploaded file.
type RecordSet struct {
	Header  []string     `json:"header" msgpack:"header"`
	Records []Record     `json:"records" msgpack:"records"`
	Issues  []ParseIssue `json:"issues,omitempty" msgpack:"issues,omitempty"`
}

// ParseIssue is a row-level coercion problem that did not stop the parse.
type ParseIssue struct {
	Line   int    `json:"line" msgpack:"line"`
	Column string `json:"column" msgpack:"column"`
	Value  string `json:"value" msgpack:"value"`
	Reason string `json:"reason" msgpack:"reason"`
}

// NewRecordSet creates an empty RecordSet.
func NewRecordSet() *RecordSet {
	return &RecordSet{
		Header:  make([]string, 0),
		Records: make([]Record, 0),
	}
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// MaxDuration is the largest duration across the set, zero for an empty set.
func (s *RecordSet) MaxDuration() float64 {
	max := 0.0
	if s == nil {
		return max
	}
	for _, r := range s.Records {
		if r.Duration > max {
			max = r.Duration
		}
	}
	return max
}

// HasColumn reports whether the header names the given column.
func (s *RecordSet) HasColumn(name string) bool {
	for _, h := range s.Header {
		if h == name {
			return true
		}
	}
	return false
}
