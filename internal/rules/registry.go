// Package rules holds the category-specific semantic checks that static
// schema shape cannot express. Rules are registered per category at startup
// and resolved by lookup; a category with no rules is trivially valid.
package rules

import (
	"time"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/domain"
)

// Context is the input handed to every rule of a category.
type Context struct {
	Records       domain.RecordSet
	Features      map[string]bool
	ReferenceDate time.Time
}

// Enabled reports whether a feature flag is on.
func (c Context) Enabled(name string) bool {
	return c.Features[name]
}

// Rule is one semantic check over a submission's record set.
type Rule interface {
	Validate(ctx Context) []domain.ValidationCondition
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc func(Context) []domain.ValidationCondition

// Validate implements Rule.
func (f RuleFunc) Validate(ctx Context) []domain.ValidationCondition {
	return f(ctx)
}

// Registry maps a category id to its ordered rule list.
type Registry struct {
	rules map[string][]Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string][]Rule)}
}

// Register appends a rule to the category's list, preserving order.
func (r *Registry) Register(categoryID string, rule Rule) {
	r.rules[categoryID] = append(r.rules[categoryID], rule)
}

// Validate runs every rule registered for the category and concatenates
// their conditions.
func (r *Registry) Validate(categoryID string, ctx Context) []domain.ValidationCondition {
	var conditions []domain.ValidationCondition
	for _, rule := range r.rules[categoryID] {
		conditions = append(conditions, rule.Validate(ctx)...)
	}
	return conditions
}

// DefaultRegistry wires the rules shipped with this deployment.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("station", OperatingWindowRule{
		Field:           "annual_o_m_cost",
		ActivationField: "station_activation_date",
		Window:          365 * 24 * time.Hour,
		Feature:         "enforce_om_cost",
	})
	return r
}
