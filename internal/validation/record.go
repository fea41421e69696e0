package validation

import (
	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

// Result is the outcome of validating a full record set against its
// category schema.
type Result struct {
	Compliant  bool
	Conditions []domain.ValidationCondition
	// Cleaned carries the records restricted to schema columns plus any
	// resolved-identity columns, preserved verbatim.
	Cleaned domain.RecordSet
}

// ValidateRecordSet checks column shape and every cell of the record set.
// Unknown and missing columns are reported once per column regardless of row
// count; cell findings carry their zero-based data row.
func ValidateRecordSet(schema domain.CategorySchema, rs domain.RecordSet) Result {
	var conditions []domain.ValidationCondition

	known := schema.KnownColumns()
	for _, col := range rs.Columns {
		if domain.IsIdentityColumn(col) {
			continue
		}
		if _, ok := known[col]; !ok {
			conditions = append(conditions, domain.NewColumnCondition(col,
				domain.CodeUnknownColumn,
				"column %s is not part of the %s schema", col, schema.CategoryID))
		}
	}

	required := schema.RequiredFields()
	for _, f := range required {
		if !rs.HasColumn(f.Name) {
			conditions = append(conditions, domain.NewColumnCondition(f.Name,
				domain.CodeMissingRequiredColumn,
				"required column %s is missing from the import", f.Name))
		}
	}

	if len(rs.Records) == 0 && len(required) > 0 {
		conditions = append(conditions, domain.NewColumnCondition("",
			domain.CodeEmptyImport, "the import contains no data rows"))
	}

	for _, col := range rs.Columns {
		def, ok := schema.Field(col)
		if !ok {
			continue
		}
		conditions = append(conditions, ValidateField(def, rs.Column(col), 0)...)
	}

	return Result{
		Compliant:  len(conditions) == 0,
		Conditions: conditions,
		Cleaned:    cleanRecordSet(schema, rs),
	}
}

// cleanRecordSet drops unrecognized columns and normalizes cell whitespace.
// Identity columns pass through untouched.
func cleanRecordSet(schema domain.CategorySchema, rs domain.RecordSet) domain.RecordSet {
	known := schema.KnownColumns()

	var columns []string
	for _, col := range rs.Columns {
		if _, ok := known[col]; ok || domain.IsIdentityColumn(col) {
			columns = append(columns, col)
		}
	}

	records := make([]domain.Record, len(rs.Records))
	for i, rec := range rs.Records {
		values := make(map[string]string, len(columns))
		for _, col := range columns {
			if domain.IsIdentityColumn(col) {
				if raw, ok := rec.Values[col]; ok {
					values[col] = raw
				}
				continue
			}
			if !rec.Empty(col) {
				values[col] = rec.Value(col)
			}
		}
		records[i] = domain.Record{Row: rec.Row, Values: values}
	}

	return domain.RecordSet{Columns: columns, Records: records}
}
