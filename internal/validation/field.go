// Package validation implements the schema-driven checks a submission must
// pass before its records are persisted: per-cell field validation, record-set
// compliance, and identity resolution. All findings are returned as
// structured conditions; nothing in this package raises validation outcomes
// as errors.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

var (
	integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
	decimalPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)
	// The accepted datetime profile: date-with-time, optional fractional
	// seconds, optional Z. Week dates, space-separated date/time, and
	// explicit non-Z offsets are rejected even though they are valid
	// ISO-8601.
	datetimePattern = regexp.MustCompile(`^([0-9]{4}-[0-9]{2}-[0-9]{2})T([0-9]{2}:[0-9]{2}:[0-9]{2})(\.[0-9]{1,9})?Z?$`)
)

// ValidateField checks one column's values against its definition. Rows are
// reported zero-based relative to the data rows, offset by rowOffset.
// Each independent violation contributes its own condition; one cell can
// raise several.
func ValidateField(def domain.FieldDefinition, values []string, rowOffset int) []domain.ValidationCondition {
	var conditions []domain.ValidationCondition

	for i, raw := range values {
		row := rowOffset + i
		value := strings.TrimSpace(raw)

		if value == "" {
			if def.Required {
				conditions = append(conditions, domain.NewRowCondition(row, def.Name,
					domain.CodeMissingValueForRequiredColumn,
					"missing value for required column %s", def.Name))
			}
			continue
		}

		if def.RequiredEmptyAllowed && strings.EqualFold(value, domain.NullAckMarker) {
			continue
		}

		conditions = append(conditions, checkValue(def, row, value)...)
	}

	return conditions
}

func checkValue(def domain.FieldDefinition, row int, value string) []domain.ValidationCondition {
	switch def.Type {
	case domain.DataTypeBoolean:
		return checkBoolean(def, row, value)
	case domain.DataTypeInteger:
		return checkInteger(def, row, value)
	case domain.DataTypeDecimal:
		return checkDecimal(def, row, value)
	case domain.DataTypeDatetime:
		return checkDatetime(def, row, value)
	default:
		return checkString(def, row, value)
	}
}

func checkBoolean(def domain.FieldDefinition, row int, value string) []domain.ValidationCondition {
	switch strings.ToLower(value) {
	case "true", "false":
		return nil
	}
	return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
		domain.CodeInvalidBoolean, "value %q for column %s is not true or false", value, def.Name)}
}

func checkInteger(def domain.FieldDefinition, row int, value string) []domain.ValidationCondition {
	if !integerPattern.MatchString(value) {
		return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
			domain.CodeInvalidInteger, "value %q for column %s is not an integer", value, def.Name)}
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
			domain.CodeInvalidInteger, "value %q for column %s is out of integer range", value, def.Name)}
	}

	var conditions []domain.ValidationCondition
	if def.ExactLength > 0 {
		digits := strings.TrimLeft(value, "+-")
		if len(digits) != def.ExactLength {
			conditions = append(conditions, domain.NewRowCondition(row, def.Name,
				domain.CodeInvalidIntegerLength,
				"value %q for column %s must be exactly %d digits", value, def.Name, def.ExactLength))
		}
	}
	if def.MinValue != nil {
		if min, err := strconv.ParseInt(*def.MinValue, 10, 64); err == nil && parsed < min {
			conditions = append(conditions, domain.NewRowCondition(row, def.Name,
				domain.CodeValueBelowMinimum,
				"value %q for column %s is below the minimum %s", value, def.Name, *def.MinValue))
		}
	}
	return conditions
}

func checkDecimal(def domain.FieldDefinition, row int, value string) []domain.ValidationCondition {
	if !decimalPattern.MatchString(value) {
		return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
			domain.CodeInvalidDecimal, "value %q for column %s is not a decimal number", value, def.Name)}
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
			domain.CodeInvalidDecimal, "value %q for column %s is not a decimal number", value, def.Name)}
	}

	var conditions []domain.ValidationCondition
	intDigits, fracDigits := decimalDigits(value)
	if def.MaxScale > 0 || def.MaxPrecision > 0 {
		// Values with fewer fractional digits than max_scale are padded with
		// trailing zeros, so scale and precision are judged against the
		// padded form.
		if fracDigits > def.MaxScale {
			conditions = append(conditions, domain.NewRowCondition(row, def.Name,
				domain.CodeDecimalScaleExceeded,
				"value %q for column %s has more than %d digits after the decimal point", value, def.Name, def.MaxScale))
		}
		if def.MaxPrecision > 0 && intDigits > def.MaxPrecision-def.MaxScale {
			conditions = append(conditions, domain.NewRowCondition(row, def.Name,
				domain.CodeDecimalPrecisionExceeded,
				"value %q for column %s exceeds precision %d,%d", value, def.Name, def.MaxPrecision, def.MaxScale))
		}
	}
	if def.MinValue != nil {
		if min, err := decimal.NewFromString(*def.MinValue); err == nil && parsed.LessThan(min) {
			conditions = append(conditions, domain.NewRowCondition(row, def.Name,
				domain.CodeValueBelowMinimum,
				"value %q for column %s is below the minimum %s", value, def.Name, *def.MinValue))
		}
	}
	return conditions
}

// decimalDigits counts significant integer digits and fractional digits of a
// plain decimal literal.
func decimalDigits(value string) (intDigits, fracDigits int) {
	value = strings.TrimLeft(value, "+-")
	whole, frac, _ := strings.Cut(value, ".")
	whole = strings.TrimLeft(whole, "0")
	return len(whole), len(frac)
}

func checkDatetime(def domain.FieldDefinition, row int, value string) []domain.ValidationCondition {
	match := datetimePattern.FindStringSubmatch(value)
	if match == nil {
		return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
			domain.CodeInvalidDatetime,
			"value %q for column %s is not a supported ISO-8601 datetime", value, def.Name)}
	}
	// The pattern fixes the shape; parsing rejects impossible dates.
	if _, err := time.Parse("2006-01-02T15:04:05", match[1]+"T"+match[2]); err != nil {
		return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
			domain.CodeInvalidDatetime,
			"value %q for column %s is not a valid datetime", value, def.Name)}
	}
	return nil
}

func checkString(def domain.FieldDefinition, row int, value string) []domain.ValidationCondition {
	if def.MaxLength > 0 && utf8.RuneCountInString(value) > def.MaxLength {
		return []domain.ValidationCondition{domain.NewRowCondition(row, def.Name,
			domain.CodeValueExceedsMaxLength,
			"value for column %s exceeds the maximum length of %d", def.Name, def.MaxLength)}
	}
	return nil
}
