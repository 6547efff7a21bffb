package workflow

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/uxlens/uxaudit_backend/models"
)

func mustCompileCatalog(t *testing.T, definitions []models.RuleDefinition) *models.RuleCatalog {
	t.Helper()
	catalog, err := models.CompileCatalog("test", definitions)
	if err != nil {
		t.Fatalf("catalog failed to compile: %v", err)
	}
	return catalog
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestTemporalRuleViolation(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:                 "feedback-under-100ms",
		Category:           models.RuleCategoryTemporal,
		Property:           "interaction_feedback_time",
		Operator:           models.RuleOperatorLessEqual,
		Severity:           models.RuleSeverityError,
		Message:            "feedback must be immediate",
		TimingConstraintMs: int64Ptr(100),
	}})
	metrics := []*models.TemporalMetric{{
		RecordingId: "rec-1",
		MetricType:  "interaction_feedback_time",
		DurationMs:  600,
	}}

	violations := EvaluateRules(catalog, nil, metrics)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.RuleId != "feedback-under-100ms" {
		t.Fatalf("unexpected rule id %q", v.RuleId)
	}
	if v.MeasuredValue == nil || *v.MeasuredValue != 600 {
		t.Fatalf("expected measured_value 600, got %v", v.MeasuredValue)
	}
	if v.Threshold == nil || *v.Threshold != 100 {
		t.Fatalf("expected threshold 100, got %v", v.Threshold)
	}
}

func TestBuiltInFeedbackRuleFlagsSlowInteraction(t *testing.T) {
	catalog := mustCompileCatalog(t, models.DefaultRuleDefinitions())
	metrics := []*models.TemporalMetric{{
		RecordingId: "rec-1",
		MetricType:  "interaction_feedback_time",
		DurationMs:  600,
	}}

	violations := EvaluateRules(catalog, nil, metrics)
	var found *models.Violation
	for _, v := range violations {
		if v.RuleId == "doherty-feedback-time" {
			found = v
			break
		}
	}
	if found == nil {
		t.Fatalf("built-in catalog did not flag a 600ms feedback delay")
	}
	if found.Threshold == nil || *found.Threshold != 100 {
		t.Fatalf("expected 100ms constraint, got %v", found.Threshold)
	}
	if found.MeasuredValue == nil || *found.MeasuredValue != 600 {
		t.Fatalf("expected measured_value 600, got %v", found.MeasuredValue)
	}
}

func TestTemporalRuleHoldsWhenWithinConstraint(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:                 "feedback-under-400ms",
		Category:           models.RuleCategoryTemporal,
		Property:           "interaction_feedback_time",
		Operator:           models.RuleOperatorLessEqual,
		Severity:           models.RuleSeverityError,
		Message:            "feedback must be immediate",
		TimingConstraintMs: int64Ptr(400),
	}})
	metrics := []*models.TemporalMetric{{
		MetricType: "interaction_feedback_time",
		DurationMs: 250,
	}}

	if violations := EvaluateRules(catalog, nil, metrics); len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}

func TestBehavioralRuleUsesWorstObservedValue(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:            "nav-items-max-7",
		Category:      models.RuleCategoryBehavioral,
		Operator:      models.RuleOperatorLessEqual,
		Value:         "7",
		Severity:      models.RuleSeverityWarning,
		Message:       "too many navigation items",
		CountProperty: strPtr("primary_nav_items"),
	}})
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"primary_nav_items": float64(5)}),
		frameAt(2, 500, models.MeasurementBag{"primary_nav_items": float64(9)}),
		frameAt(3, 1000, models.MeasurementBag{"primary_nav_items": float64(6)}),
	}

	violations := EvaluateRules(catalog, frames, nil)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	if *violations[0].MeasuredValue != 9 {
		t.Fatalf("expected worst value 9, got %v", *violations[0].MeasuredValue)
	}
}

func TestBehavioralRuleWithinThresholdIsSilent(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:            "nav-items-max-7",
		Category:      models.RuleCategoryBehavioral,
		Operator:      models.RuleOperatorLessEqual,
		Value:         "7",
		Severity:      models.RuleSeverityWarning,
		Message:       "too many navigation items",
		CountProperty: strPtr("primary_nav_items"),
	}})
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"primary_nav_items": float64(5)}),
	}

	if violations := EvaluateRules(catalog, frames, nil); len(violations) != 0 {
		t.Fatalf("5 items under a <=7 rule must not violate, got %v", violations)
	}
}

func TestMissingMeasurementSkipsRule(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:            "nav-items-max-7",
		Category:      models.RuleCategoryBehavioral,
		Operator:      models.RuleOperatorLessEqual,
		Value:         "7",
		Severity:      models.RuleSeverityWarning,
		Message:       "too many navigation items",
		CountProperty: strPtr("primary_nav_items"),
	}})
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"other_property": float64(99)}),
	}

	if violations := EvaluateRules(catalog, frames, nil); len(violations) != 0 {
		t.Fatalf("a missing measurement must skip the rule, got %v", violations)
	}
}

func TestUnitSuffixedMeasurementIsCoerced(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:            "form-fields-max-10",
		Category:      models.RuleCategoryBehavioral,
		Operator:      models.RuleOperatorLessEqual,
		Value:         "10",
		Severity:      models.RuleSeverityWarning,
		Message:       "too many visible form fields",
		CountProperty: strPtr("visible_form_fields"),
	}})
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"visible_form_fields": "12px"}),
	}

	violations := EvaluateRules(catalog, frames, nil)
	if len(violations) != 1 {
		t.Fatalf("expected the unit-suffixed value to evaluate, got %v", violations)
	}
	if *violations[0].MeasuredValue != 12 {
		t.Fatalf("expected coerced value 12, got %v", *violations[0].MeasuredValue)
	}
}

func TestSpatialRuleReportsUndersizedTarget(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:       "touch-target-44",
		Category: models.RuleCategorySpatial,
		Property: "primary_action_button",
		Severity: models.RuleSeverityError,
		Message:  "touch target below minimum",
		ZoneDefinition: &models.ZoneDefinition{
			MinWidth:  dec(t, "44"),
			MinHeight: dec(t, "44"),
		},
	}})
	button := map[string]interface{}{"width": float64(38), "height": float64(38)}
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"primary_action_button": button}),
		frameAt(2, 500, models.MeasurementBag{"primary_action_button": button}),
	}

	violations := EvaluateRules(catalog, frames, nil)
	if len(violations) != 1 {
		t.Fatalf("the same undersized target must report once, got %d", len(violations))
	}
	if violations[0].Found != "38x38px" {
		t.Fatalf("unexpected found %q", violations[0].Found)
	}
	if violations[0].Expected != "44x44px minimum" {
		t.Fatalf("unexpected expected %q", violations[0].Expected)
	}
}

func TestPatternRuleDetectsIndicatorCaseInsensitively(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{{
		ID:                "confirm-shaming",
		Category:          models.RuleCategoryPattern,
		Property:          "decline_option_text",
		Severity:          models.RuleSeverityWarning,
		Message:           "decline option uses confirm-shaming language",
		PatternIndicators: []string{"no thanks, i don't want"},
	}})
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"decline_option_text": "No thanks, I don't want to save money"}),
		frameAt(2, 500, models.MeasurementBag{"decline_option_text": "No thanks, I don't want to save money"}),
	}

	violations := EvaluateRules(catalog, frames, nil)
	if len(violations) != 1 {
		t.Fatalf("the same finding must report once, got %d", len(violations))
	}
	if violations[0].PatternDetected != "no thanks, i don't want" {
		t.Fatalf("unexpected pattern %q", violations[0].PatternDetected)
	}
}

func TestEvaluationIsDeterministic(t *testing.T) {
	catalog := mustCompileCatalog(t, []models.RuleDefinition{
		{
			ID:                "pattern-any-text",
			Category:          models.RuleCategoryPattern,
			Severity:          models.RuleSeverityWarning,
			Message:           "urgency language",
			PatternIndicators: []string{"only", "hurry"},
		},
		{
			ID:            "nav-items-max-7",
			Category:      models.RuleCategoryBehavioral,
			Operator:      models.RuleOperatorLessEqual,
			Value:         "7",
			Severity:      models.RuleSeverityWarning,
			Message:       "too many navigation items",
			CountProperty: strPtr("primary_nav_items"),
		},
	})
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{
			"banner_text":       "Hurry, only 2 left!",
			"footer_text":       "only today",
			"primary_nav_items": float64(9),
		}),
	}

	first := EvaluateRules(catalog, frames, nil)
	for run := 0; run < 50; run++ {
		again := EvaluateRules(catalog, frames, nil)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run=%d evaluation order changed:\n%v\nvs\n%v", run, first, again)
		}
	}
}
