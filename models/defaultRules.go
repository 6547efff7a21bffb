package models

import "github.com/shopspring/decimal"

const defaultCatalogVersion = "2025.08"

func int64Ptr(v int64) *int64    { return &v }
func strPtr(v string) *string    { return &v }
func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// DefaultRuleDefinitions is the built-in catalog, used when RULE_CATALOG_PATH
// is not configured. Order here is the evaluation order.
func DefaultRuleDefinitions() []RuleDefinition {
	return []RuleDefinition{
		{
			ID:                 "doherty-feedback-time",
			Category:           RuleCategoryTemporal,
			Property:           "interaction_feedback_time",
			Operator:           RuleOperatorLessEqual,
			Severity:           RuleSeverityError,
			Message:            "Interface feedback after an interaction should arrive within the response threshold",
			TimingConstraintMs: int64Ptr(100),
		},
		{
			ID:                 "loading-indicator-duration",
			Category:           RuleCategoryTemporal,
			Property:           "loading_duration",
			Operator:           RuleOperatorLessEqual,
			Severity:           RuleSeverityWarning,
			Message:            "Loading states should resolve before users perceive the wait as broken",
			TimingConstraintMs: int64Ptr(5000),
		},
		{
			ID:                 "navigation-settle-time",
			Category:           RuleCategoryTemporal,
			Property:           "navigation_settle_time",
			Operator:           RuleOperatorLessEqual,
			Severity:           RuleSeverityWarning,
			Message:            "Navigations should settle into a stable view promptly",
			TimingConstraintMs: int64Ptr(3000),
		},
		{
			ID:            "primary-nav-item-count",
			Category:      RuleCategoryBehavioral,
			Operator:      RuleOperatorLessEqual,
			Value:         "7",
			Severity:      RuleSeverityWarning,
			Message:       "Primary navigation should stay within working-memory limits",
			CountProperty: strPtr("primary_nav_items"),
		},
		{
			ID:            "visible-form-field-count",
			Category:      RuleCategoryBehavioral,
			Operator:      RuleOperatorLessEqual,
			Value:         "10",
			Severity:      RuleSeverityInfo,
			Message:       "Long forms should be broken into steps",
			CountProperty: strPtr("visible_form_fields"),
		},
		{
			ID:            "simultaneous-modal-count",
			Category:      RuleCategoryBehavioral,
			Operator:      RuleOperatorLessEqual,
			Value:         "1",
			Severity:      RuleSeverityError,
			Message:       "Stacked modal dialogs should never appear",
			CountProperty: strPtr("open_modals"),
		},
		{
			ID:       "touch-target-minimum",
			Category: RuleCategorySpatial,
			Property: "primary_action_button",
			Severity: RuleSeverityError,
			Message:  "Interactive targets should meet the minimum touch size",
			ZoneDefinition: &ZoneDefinition{
				MinWidth:  dec(44),
				MinHeight: dec(44),
			},
		},
		{
			ID:       "dismiss-control-size",
			Category: RuleCategorySpatial,
			Property: "dismiss_control",
			Severity: RuleSeverityWarning,
			Message:  "Dismiss/close controls should be as reachable as accept controls",
			ZoneDefinition: &ZoneDefinition{
				MinWidth:  dec(24),
				MinHeight: dec(24),
			},
		},
		{
			ID:       "confirm-shaming",
			Category: RuleCategoryPattern,
			Property: "decline_option_text",
			Severity: RuleSeverityError,
			Message:  "Decline options should not shame the user for declining",
			PatternIndicators: []string{
				"No thanks, I don't want",
				"I don't want to save",
				"I prefer paying full price",
				"I hate saving money",
			},
		},
		{
			ID:       "fake-urgency",
			Category: RuleCategoryPattern,
			Severity: RuleSeverityWarning,
			Message:  "Urgency cues should reflect real scarcity, not manufactured pressure",
			PatternIndicators: []string{
				"only a few left",
				"offer expires in",
				"hurry, ends soon",
				"selling fast",
			},
		},
		{
			ID:       "forced-continuity-language",
			Category: RuleCategoryPattern,
			Severity: RuleSeverityWarning,
			Message:  "Trial signup copy should disclose renewal terms plainly",
			PatternIndicators: []string{
				"cancel anytime before",
				"your card will be charged automatically",
			},
		},
	}
}
