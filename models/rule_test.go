package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validTemporalDefinition() RuleDefinition {
	constraint := int64(400)
	return RuleDefinition{
		ID:                 "feedback-time",
		Category:           RuleCategoryTemporal,
		Property:           "interaction_feedback_time",
		Operator:           RuleOperatorLessEqual,
		Severity:           RuleSeverityError,
		Message:            "feedback too slow",
		TimingConstraintMs: &constraint,
	}
}

func TestDefaultCatalogCompiles(t *testing.T) {
	catalog, err := CompileCatalog(defaultCatalogVersion, DefaultRuleDefinitions())
	if err != nil {
		t.Fatalf("built-in catalog must compile: %v", err)
	}
	if catalog.Len() == 0 {
		t.Fatalf("built-in catalog is empty")
	}
	counts := catalog.CountByCategory()
	for _, category := range []RuleCategory{RuleCategoryTemporal, RuleCategoryBehavioral, RuleCategorySpatial, RuleCategoryPattern} {
		if counts[category] == 0 {
			t.Fatalf("built-in catalog has no %s rules", category)
		}
	}
	if counts[RuleCategoryStatic] != 0 {
		t.Fatalf("built-in catalog must not carry STATIC rules")
	}
}

func TestCompileRejectsMissingCategoryField(t *testing.T) {
	def := validTemporalDefinition()
	def.TimingConstraintMs = nil
	if _, err := def.Compile(); err == nil {
		t.Fatalf("TEMPORAL rule without timing_constraint_ms must fail")
	}
}

func TestCompileRejectsCrossCategoryFields(t *testing.T) {
	def := validTemporalDefinition()
	prop := "primary_nav_items"
	def.CountProperty = &prop
	if _, err := def.Compile(); err == nil {
		t.Fatalf("TEMPORAL rule carrying count_property must fail")
	}

	def = validTemporalDefinition()
	def.PatternIndicators = []string{"hurry"}
	if _, err := def.Compile(); err == nil {
		t.Fatalf("TEMPORAL rule carrying pattern_indicators must fail")
	}
}

func TestCompileRejectsStaticRules(t *testing.T) {
	def := validTemporalDefinition()
	def.Category = RuleCategoryStatic
	if _, err := def.Compile(); err == nil {
		t.Fatalf("STATIC rule must be rejected by this catalog")
	}
}

func TestCompileRejectsBadSeverityAndOperator(t *testing.T) {
	def := validTemporalDefinition()
	def.Severity = "critical"
	if _, err := def.Compile(); err == nil {
		t.Fatalf("unknown severity must fail")
	}

	def = validTemporalDefinition()
	def.Operator = "~="
	if _, err := def.Compile(); err == nil {
		t.Fatalf("unknown operator must fail")
	}
}

func TestCompileRejectsNonNumericOperatorForMeasuredRules(t *testing.T) {
	def := validTemporalDefinition()
	def.Operator = RuleOperatorContains
	if _, err := def.Compile(); err == nil {
		t.Fatalf("contains on a TEMPORAL rule must fail at compile time")
	}

	prop := "popup_count"
	behavioral := RuleDefinition{
		ID:            "popup-limit",
		Category:      RuleCategoryBehavioral,
		CountProperty: &prop,
		Operator:      RuleOperatorContains,
		Value:         "3",
		Severity:      RuleSeverityWarning,
		Message:       "too many popups",
	}
	if _, err := behavioral.Compile(); err == nil {
		t.Fatalf("contains on a BEHAVIORAL rule must fail at compile time")
	}

	// The catalog as a whole rejects the bad rule too, so a malformed
	// definition can never reach evaluation.
	if _, err := CompileCatalog("test", []RuleDefinition{behavioral}); err == nil {
		t.Fatalf("catalog with a non-numeric operator must fail to compile")
	}
}

func TestCompileCatalogRejectsDuplicateIds(t *testing.T) {
	defs := []RuleDefinition{validTemporalDefinition(), validTemporalDefinition()}
	if _, err := CompileCatalog("test", defs); err == nil {
		t.Fatalf("duplicate rule ids must fail the whole catalog")
	}
}

func TestCompileCatalogFailsFastOnOneBadRule(t *testing.T) {
	bad := validTemporalDefinition()
	bad.ID = "broken"
	bad.Message = ""
	defs := append(DefaultRuleDefinitions(), bad)
	if _, err := CompileCatalog("test", defs); err == nil {
		t.Fatalf("one malformed rule must abort the load")
	}
}

func TestBehavioralThresholdStripsUnits(t *testing.T) {
	prop := "primary_nav_items"
	def := RuleDefinition{
		ID:            "nav-items",
		Category:      RuleCategoryBehavioral,
		Operator:      RuleOperatorLessEqual,
		Value:         "7items",
		Severity:      RuleSeverityWarning,
		Message:       "too many items",
		CountProperty: &prop,
	}
	rule, err := def.Compile()
	if err != nil {
		t.Fatalf("unit-suffixed threshold must compile: %v", err)
	}
	behavioral := rule.(*BehavioralRule)
	if !behavioral.Threshold.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected threshold 7, got %s", behavioral.Threshold)
	}
}
