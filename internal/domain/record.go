package domain

import "strings"

// ResolvedStationKeyColumn holds the internal station key resolved from the
// human-entered station identifier during validation. It is carried through
// cleaning verbatim and is never treated as an unknown column.
const ResolvedStationKeyColumn = "station_key"

// identityColumns are resolved-identity columns that bypass schema checks.
var identityColumns = map[string]struct{}{
	ResolvedStationKeyColumn: {},
}

// IsIdentityColumn reports whether the named column carries a resolved
// internal identity rather than submitted data.
func IsIdentityColumn(name string) bool {
	_, ok := identityColumns[name]
	return ok
}

// Record is one data row of a submission: raw string cell values keyed by
// column name. Row is the zero-based ordinal among data rows.
type Record struct {
	Row    int               `json:"row"`
	Values map[string]string `json:"values"`
}

// Value returns the trimmed cell value for the named column.
func (r Record) Value(name string) string {
	return strings.TrimSpace(r.Values[name])
}

// Empty reports whether the named column is blank or absent in this record.
func (r Record) Empty(name string) bool {
	return r.Value(name) == ""
}

// RecordSet is the parsed body of one submission.
type RecordSet struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// HasColumn reports whether the record set carries the named column.
func (rs RecordSet) HasColumn(name string) bool {
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the trimmed values of one column in row order, with "" for
// rows where the column is absent.
func (rs RecordSet) Column(name string) []string {
	values := make([]string, len(rs.Records))
	for i, rec := range rs.Records {
		values[i] = rec.Value(name)
	}
	return values
}
