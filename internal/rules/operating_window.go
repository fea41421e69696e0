package rules

import (
	"strings"
	"time"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

// OperatingWindowRule requires Field once the asset named by ActivationField
// has been operating for at least Window as of the reference date. Before
// that, the field may legitimately be empty.
type OperatingWindowRule struct {
	Field           string
	ActivationField string
	Window          time.Duration
	// Feature gates the rule; an empty name means always on.
	Feature string
}

// Validate implements Rule.
func (r OperatingWindowRule) Validate(ctx Context) []domain.ValidationCondition {
	if r.Feature != "" && !ctx.Enabled(r.Feature) {
		return nil
	}

	var conditions []domain.ValidationCondition
	for _, rec := range ctx.Records.Records {
		if !rec.Empty(r.Field) {
			continue
		}
		activated, ok := parseRuleDate(rec.Value(r.ActivationField))
		if !ok {
			// An unparseable activation date is the field validator's
			// finding, not this rule's.
			continue
		}
		if ctx.ReferenceDate.Sub(activated) < r.Window {
			continue
		}
		conditions = append(conditions, domain.NewRowCondition(rec.Row, r.Field,
			domain.CodeMissingValueForRequiredColumn,
			"column %s is required once the station has operated for a full reporting year", r.Field))
	}
	return conditions
}

func parseRuleDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	value = strings.TrimSuffix(value, "Z")
	if dot := strings.Index(value, "."); dot >= 0 {
		value = value[:dot]
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
