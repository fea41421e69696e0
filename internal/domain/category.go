package domain

// DataType represents the declared type of a reporting field.
type DataType string

const (
	DataTypeString   DataType = "string"
	DataTypeInteger  DataType = "integer"
	DataTypeDecimal  DataType = "decimal"
	DataTypeBoolean  DataType = "boolean"
	DataTypeDatetime DataType = "datetime"
)

// Cadence represents how often a category must be reported.
type Cadence string

const (
	CadenceOneTime   Cadence = "one-time"
	CadenceAnnual    Cadence = "annual"
	CadenceQuarterly Cadence = "quarterly"
)

// NullAckMarker is the explicit "no data to report" value. A required field
// whose definition allows it may carry this marker instead of a real value;
// an accidentally blank cell is still a missing value.
const NullAckMarker = "NULL"

// FieldDefinition describes one column of a reporting category.
type FieldDefinition struct {
	Name        string   `yaml:"name" json:"name"`
	Type        DataType `yaml:"type" json:"type"`
	Required    bool     `yaml:"required" json:"required"`
	Recommended bool     `yaml:"recommended" json:"recommended"`
	// RequiredEmptyAllowed permits the NullAckMarker in place of a value for
	// a required field.
	RequiredEmptyAllowed bool `yaml:"required_empty_allowed" json:"required_empty_allowed"`

	// Bounds. Zero values mean "not constrained".
	MaxLength    int     `yaml:"max_length" json:"max_length"`
	ExactLength  int     `yaml:"exact_length" json:"exact_length"`
	MaxPrecision int     `yaml:"max_precision" json:"max_precision"`
	MaxScale     int     `yaml:"max_scale" json:"max_scale"`
	MinValue     *string `yaml:"min_value" json:"min_value"`
}

// CategorySchema is the full, immutable definition of one reporting category.
type CategorySchema struct {
	CategoryID string            `yaml:"category_id" json:"category_id"`
	Name       string            `yaml:"name" json:"name"`
	Cadence    Cadence           `yaml:"cadence" json:"cadence"`
	Fields     []FieldDefinition `yaml:"fields" json:"fields"`
	// UniqueKeyFields is the ordered field tuple that must not repeat within
	// an organization's accepted data for this category.
	UniqueKeyFields []string `yaml:"unique_key_fields" json:"unique_key_fields"`
	// NullableKeyFields lists key fields that may legitimately be empty.
	NullableKeyFields []string `yaml:"nullable_key_fields" json:"nullable_key_fields"`
}

// Field returns the definition for the named column.
func (cs CategorySchema) Field(name string) (FieldDefinition, bool) {
	for _, f := range cs.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// RequiredFields returns the required field definitions in declaration order.
func (cs CategorySchema) RequiredFields() []FieldDefinition {
	var fields []FieldDefinition
	for _, f := range cs.Fields {
		if f.Required {
			fields = append(fields, f)
		}
	}
	return fields
}

// KnownColumns returns the set of column names a record set may carry:
// required and recommended fields from the schema.
func (cs CategorySchema) KnownColumns() map[string]struct{} {
	known := make(map[string]struct{}, len(cs.Fields))
	for _, f := range cs.Fields {
		known[f.Name] = struct{}{}
	}
	return known
}

// IsNullableKey reports whether the named key field may legitimately be empty.
func (cs CategorySchema) IsNullableKey(name string) bool {
	for _, f := range cs.NullableKeyFields {
		if f == name {
			return true
		}
	}
	return false
}

// Periodic reports whether submissions of this category are scoped to a
// reporting window for uniqueness purposes.
func (cs CategorySchema) Periodic() bool {
	return cs.Cadence == CadenceAnnual || cs.Cadence == CadenceQuarterly
}
