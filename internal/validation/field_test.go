package validation

import (
	"testing"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestValidateFieldRequiredEmpty(t *testing.T) {
	def := domain.FieldDefinition{Name: "station_name", Type: domain.DataTypeString, Required: true}

	conditions := ValidateField(def, []string{"Main St Plaza", "", "  "}, 0)
	if len(conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d: %+v", len(conditions), conditions)
	}
	for i, want := range []int{1, 2} {
		c := conditions[i]
		if c.Code != domain.CodeMissingValueForRequiredColumn {
			t.Fatalf("expected missing-value code, got %s", c.Code)
		}
		if c.ErrorRow == nil || *c.ErrorRow != want {
			t.Fatalf("expected row %d, got %v", want, c.ErrorRow)
		}
	}
}

func TestValidateFieldNullAck(t *testing.T) {
	def := domain.FieldDefinition{
		Name:                 "payment_method",
		Type:                 domain.DataTypeString,
		Required:             true,
		RequiredEmptyAllowed: true,
		MaxLength:            3,
	}

	// The marker passes even though it exceeds the type bounds; a blank cell
	// is still missing.
	conditions := ValidateField(def, []string{"NULL", "null", ""}, 0)
	if len(conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d: %+v", len(conditions), conditions)
	}
	if conditions[0].Code != domain.CodeMissingValueForRequiredColumn {
		t.Fatalf("expected missing-value code, got %s", conditions[0].Code)
	}
}

func TestValidateFieldNullAckNotAllowed(t *testing.T) {
	def := domain.FieldDefinition{Name: "station_id", Type: domain.DataTypeString, Required: true, MaxLength: 3}

	conditions := ValidateField(def, []string{"NULL"}, 0)
	if len(conditions) != 1 {
		t.Fatalf("expected literal NULL to fail length check, got %+v", conditions)
	}
	if conditions[0].Code != domain.CodeValueExceedsMaxLength {
		t.Fatalf("expected max-length code, got %s", conditions[0].Code)
	}
}

func TestValidateFieldBoolean(t *testing.T) {
	def := domain.FieldDefinition{Name: "ada_accessible", Type: domain.DataTypeBoolean}

	conditions := ValidateField(def, []string{"true", "FALSE", "yes", "1"}, 0)
	if len(conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %+v", conditions)
	}
	for _, c := range conditions {
		if c.Code != domain.CodeInvalidBoolean {
			t.Fatalf("expected invalid-boolean code, got %s", c.Code)
		}
	}
}

func TestValidateFieldInteger(t *testing.T) {
	def := domain.FieldDefinition{Name: "num_ports", Type: domain.DataTypeInteger, MinValue: strPtr("1")}

	cases := []struct {
		value string
		code  domain.ConditionCode
	}{
		{"4", ""},
		{"+12", ""},
		{"3.5", domain.CodeInvalidInteger},
		{"abc", domain.CodeInvalidInteger},
		{"1e3", domain.CodeInvalidInteger},
		{"0", domain.CodeValueBelowMinimum},
		{"-2", domain.CodeValueBelowMinimum},
	}
	for _, tc := range cases {
		conditions := ValidateField(def, []string{tc.value}, 0)
		if tc.code == "" {
			if len(conditions) != 0 {
				t.Fatalf("value %q: expected no conditions, got %+v", tc.value, conditions)
			}
			continue
		}
		if len(conditions) != 1 || conditions[0].Code != tc.code {
			t.Fatalf("value %q: expected %s, got %+v", tc.value, tc.code, conditions)
		}
	}
}

func TestValidateFieldIntegerExactLength(t *testing.T) {
	def := domain.FieldDefinition{Name: "zip_code", Type: domain.DataTypeInteger, ExactLength: 5}

	conditions := ValidateField(def, []string{"30318", "512"}, 0)
	if len(conditions) != 1 {
		t.Fatalf("expected 1 condition, got %+v", conditions)
	}
	if conditions[0].Code != domain.CodeInvalidIntegerLength {
		t.Fatalf("expected integer-length code, got %s", conditions[0].Code)
	}
}

func TestValidateFieldDecimalPrecisionScale(t *testing.T) {
	def := domain.FieldDefinition{Name: "session_kwh", Type: domain.DataTypeDecimal, MaxPrecision: 10, MaxScale: 3}

	cases := []struct {
		value string
		code  domain.ConditionCode
	}{
		{"42.125", ""},
		{"42.1", ""},
		{"1234567.999", ""},
		{"42.1234", domain.CodeDecimalScaleExceeded},
		{"12345678.1", domain.CodeDecimalPrecisionExceeded},
		{"1,5", domain.CodeInvalidDecimal},
		{"4.2e1", domain.CodeInvalidDecimal},
	}
	for _, tc := range cases {
		conditions := ValidateField(def, []string{tc.value}, 0)
		if tc.code == "" {
			if len(conditions) != 0 {
				t.Fatalf("value %q: expected no conditions, got %+v", tc.value, conditions)
			}
			continue
		}
		if len(conditions) != 1 || conditions[0].Code != tc.code {
			t.Fatalf("value %q: expected %s, got %+v", tc.value, tc.code, conditions)
		}
	}
}

func TestValidateFieldDatetimeProfile(t *testing.T) {
	def := domain.FieldDefinition{Name: "plug_start_datetime", Type: domain.DataTypeDatetime}

	valid := []string{
		"2025-03-14T09:26:53",
		"2025-03-14T09:26:53Z",
		"2025-03-14T09:26:53.123Z",
		"2025-03-14T09:26:53.123456789",
	}
	for _, v := range valid {
		if conditions := ValidateField(def, []string{v}, 0); len(conditions) != 0 {
			t.Fatalf("value %q: expected valid, got %+v", v, conditions)
		}
	}

	invalid := []string{
		"2025-03-14 09:26:53",
		"2025-03-14T09:26:53+02:00",
		"2025-W11-5T09:26:53",
		"2025-03-14",
		"2025-02-30T09:26:53",
		"2025-03-14T25:00:00",
	}
	for _, v := range invalid {
		conditions := ValidateField(def, []string{v}, 0)
		if len(conditions) != 1 || conditions[0].Code != domain.CodeInvalidDatetime {
			t.Fatalf("value %q: expected invalid-datetime, got %+v", v, conditions)
		}
	}
}

func TestValidateFieldRowOffset(t *testing.T) {
	def := domain.FieldDefinition{Name: "num_ports", Type: domain.DataTypeInteger}

	conditions := ValidateField(def, []string{"x"}, 7)
	if len(conditions) != 1 {
		t.Fatalf("expected 1 condition, got %+v", conditions)
	}
	if conditions[0].ErrorRow == nil || *conditions[0].ErrorRow != 7 {
		t.Fatalf("expected row 7, got %v", conditions[0].ErrorRow)
	}
}
