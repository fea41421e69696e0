package domain

import "fmt"

// ConditionCode identifies the class of a validation finding.
type ConditionCode string

const (
	CodeMissingValueForRequiredColumn ConditionCode = "MISSING_VALUE_FOR_REQUIRED_COLUMN"
	CodeMissingRequiredColumn         ConditionCode = "MISSING_REQUIRED_COLUMN"
	CodeUnknownColumn                 ConditionCode = "UNKNOWN_COLUMN"
	CodeEmptyImport                   ConditionCode = "EMPTY_IMPORT"
	CodeInvalidBoolean                ConditionCode = "INVALID_BOOLEAN"
	CodeInvalidInteger                ConditionCode = "INVALID_INTEGER"
	CodeInvalidDecimal                ConditionCode = "INVALID_DECIMAL"
	CodeInvalidDatetime               ConditionCode = "INVALID_DATETIME"
	CodeValueExceedsMaxLength         ConditionCode = "VALUE_EXCEEDS_MAX_LENGTH"
	CodeInvalidIntegerLength          ConditionCode = "INVALID_INTEGER_LENGTH"
	CodeValueBelowMinimum             ConditionCode = "VALUE_BELOW_MINIMUM"
	CodeDecimalPrecisionExceeded      ConditionCode = "DECIMAL_PRECISION_EXCEEDED"
	CodeDecimalScaleExceeded          ConditionCode = "DECIMAL_SCALE_EXCEEDED"
	CodeUnresolvedIdentity            ConditionCode = "UNRESOLVED_IDENTITY"
	CodeDuplicateInSameUpload         ConditionCode = "DUPLICATE_RECORD_IN_SAME_UPLOAD"
	CodeDuplicateInSystem             ConditionCode = "DUPLICATE_RECORD_IN_SYSTEM"
	CodeChecksumMismatch              ConditionCode = "CHECKSUM_MISMATCH"
	CodeInternalError                 ConditionCode = "INTERNAL_ERROR"
)

// ValidationCondition is one finding raised against a submission. ErrorRow is
// nil for column-level findings and zero-based relative to the data rows
// (post-header) otherwise.
type ValidationCondition struct {
	ErrorRow    *int          `json:"error_row"`
	HeaderName  string        `json:"header_name"`
	Code        ConditionCode `json:"code"`
	Description string        `json:"error_description"`
}

// NewRowCondition builds a row-scoped condition.
func NewRowCondition(row int, header string, code ConditionCode, format string, args ...any) ValidationCondition {
	r := row
	return ValidationCondition{
		ErrorRow:    &r,
		HeaderName:  header,
		Code:        code,
		Description: fmt.Sprintf(format, args...),
	}
}

// NewColumnCondition builds a condition not tied to a single data row.
func NewColumnCondition(header string, code ConditionCode, format string, args ...any) ValidationCondition {
	return ValidationCondition{
		HeaderName:  header,
		Code:        code,
		Description: fmt.Sprintf(format, args...),
	}
}
