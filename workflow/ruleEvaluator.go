package workflow

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uxlens/uxaudit_backend/models"
)

// EvaluateRules runs every compiled rule against the extracted evidence and
// returns the violations in catalog order. Evaluation is deterministic: the
// same catalog, frames and metrics always produce the same violation list. A
// rule whose evidence is absent is skipped, never violated; a missing
// measurement is not a measurement of zero.
func EvaluateRules(catalog *models.RuleCatalog, frames []*models.Frame, metrics []*models.TemporalMetric) []*models.Violation {
	violations := make([]*models.Violation, 0)
	for _, rule := range catalog.Rules() {
		switch r := rule.(type) {
		case *models.TemporalRule:
			violations = append(violations, evaluateTemporalRule(r, metrics)...)
		case *models.BehavioralRule:
			violations = append(violations, evaluateBehavioralRule(r, frames)...)
		case *models.SpatialRule:
			violations = append(violations, evaluateSpatialRule(r, frames)...)
		case *models.PatternRule:
			violations = append(violations, evaluatePatternRule(r, frames)...)
		}
	}
	return violations
}

// operatorHolds reports whether "measured <op> threshold" is satisfied. The
// rule states the requirement, so a violation is the requirement NOT holding.
// Catalog compilation only admits numeric operators for timed and counted
// rules, so every operator reaching here compares.
func operatorHolds(measured decimal.Decimal, op models.RuleOperator, threshold decimal.Decimal) bool {
	switch op {
	case models.RuleOperatorEqual:
		return measured.Equal(threshold)
	case models.RuleOperatorNotEqual:
		return !measured.Equal(threshold)
	case models.RuleOperatorLess:
		return measured.LessThan(threshold)
	case models.RuleOperatorLessEqual:
		return measured.LessThanOrEqual(threshold)
	case models.RuleOperatorGreater:
		return measured.GreaterThan(threshold)
	case models.RuleOperatorGreaterEqual:
		return measured.GreaterThanOrEqual(threshold)
	}
	return false
}

func evaluateTemporalRule(rule *models.TemporalRule, metrics []*models.TemporalMetric) []*models.Violation {
	threshold := decimal.NewFromInt(rule.TimingConstraintMs)
	var violations []*models.Violation
	for _, metric := range metrics {
		if metric.MetricType != rule.MetricType {
			continue
		}
		measured := decimal.NewFromInt(metric.DurationMs)
		if operatorHolds(measured, rule.Operator, threshold) {
			continue
		}
		measuredValue := float64(metric.DurationMs)
		thresholdValue := float64(rule.TimingConstraintMs)
		violations = append(violations, &models.Violation{
			RuleId:        rule.ID,
			Category:      rule.Category,
			Severity:      rule.Severity,
			Message:       rule.Message,
			MeasuredValue: &measuredValue,
			Threshold:     &thresholdValue,
		})
	}
	return violations
}

// evaluateBehavioralRule compares the worst observed value of the counted
// property across the whole frame set. The property not appearing in any frame
// means the behavior was never observed, so the rule is skipped.
func evaluateBehavioralRule(rule *models.BehavioralRule, frames []*models.Frame) []*models.Violation {
	var worst decimal.Decimal
	observed := false
	for _, frame := range frames {
		value, ok := frame.ExtractedValues.Number(rule.CountProperty)
		if !ok {
			continue
		}
		if !observed || value.GreaterThan(worst) {
			worst = value
		}
		observed = true
	}
	if !observed {
		return nil
	}

	if operatorHolds(worst, rule.Operator, rule.Threshold) {
		return nil
	}
	measuredValue := worst.InexactFloat64()
	thresholdValue := rule.Threshold.InexactFloat64()
	return []*models.Violation{{
		RuleId:        rule.ID,
		Category:      rule.Category,
		Severity:      rule.Severity,
		Message:       rule.Message,
		MeasuredValue: &measuredValue,
		Threshold:     &thresholdValue,
	}}
}

// evaluateSpatialRule reports one violation per distinct non-conforming size
// observed for the property. The same undersized element recurring across
// frames is a single finding.
func evaluateSpatialRule(rule *models.SpatialRule, frames []*models.Frame) []*models.Violation {
	seen := map[string]bool{}
	var violations []*models.Violation
	for _, frame := range frames {
		dims, ok := frame.ExtractedValues.Dimensions(rule.Property)
		if !ok {
			continue
		}
		if dims.Width.GreaterThanOrEqual(rule.Zone.MinWidth) && dims.Height.GreaterThanOrEqual(rule.Zone.MinHeight) {
			continue
		}
		found := dims.String()
		if seen[found] {
			continue
		}
		seen[found] = true
		violations = append(violations, &models.Violation{
			RuleId:   rule.ID,
			Category: rule.Category,
			Severity: rule.Severity,
			Message:  rule.Message,
			Found:    found,
			Expected: rule.Zone.String(),
		})
	}
	return violations
}

// evaluatePatternRule scans text measurements for indicator substrings,
// case-insensitively. Properties are visited in sorted order and findings are
// deduplicated per (property, indicator) so repeated frames of the same screen
// report once.
func evaluatePatternRule(rule *models.PatternRule, frames []*models.Frame) []*models.Violation {
	type finding struct {
		property  string
		indicator string
	}
	seen := map[finding]bool{}
	var violations []*models.Violation

	for _, frame := range frames {
		for _, property := range patternProperties(rule, frame.ExtractedValues) {
			text, ok := frame.ExtractedValues.Text(property)
			if !ok {
				continue
			}
			lowered := strings.ToLower(text)
			for _, indicator := range rule.Indicators {
				if !strings.Contains(lowered, strings.ToLower(indicator)) {
					continue
				}
				key := finding{property: property, indicator: indicator}
				if seen[key] {
					continue
				}
				seen[key] = true
				violations = append(violations, &models.Violation{
					RuleId:          rule.ID,
					Category:        rule.Category,
					Severity:        rule.Severity,
					Message:         rule.Message,
					Found:           text,
					PatternDetected: indicator,
				})
			}
		}
	}
	return violations
}

func patternProperties(rule *models.PatternRule, bag models.MeasurementBag) []string {
	if rule.TextProperty != "" {
		return []string{rule.TextProperty}
	}
	properties := make([]string, 0, len(bag))
	for property, raw := range bag {
		if _, ok := raw.(string); ok {
			properties = append(properties, property)
		}
	}
	sort.Strings(properties)
	return properties
}
