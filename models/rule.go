package models

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uxlens/uxaudit_backend/utils"
)

// The rule catalog is immutable after startup. Definitions arrive in a flat
// JSON shape (RuleDefinition) and are compiled into one concrete type per
// category, so evaluator code for a category can only ever read the fields
// that category carries.

type RuleBase struct {
	ID       string
	Category RuleCategory
	Severity RuleSeverity
	Message  string
}

func (b *RuleBase) Base() *RuleBase { return b }

// CatalogRule is the closed set of compiled rule shapes.
type CatalogRule interface {
	Base() *RuleBase
	Definition() RuleDefinition
}

// TemporalRule compares the duration of every matching temporal metric
// against a millisecond constraint.
type TemporalRule struct {
	RuleBase
	MetricType         string
	Operator           RuleOperator
	TimingConstraintMs int64
}

// BehavioralRule counts occurrences of a property across the frame set and
// compares the count against a threshold.
type BehavioralRule struct {
	RuleBase
	CountProperty string
	Operator      RuleOperator
	Threshold     decimal.Decimal
}

// ZoneDefinition is the spatial constraint a SPATIAL rule enforces.
type ZoneDefinition struct {
	MinWidth  decimal.Decimal `json:"min_width"`
	MinHeight decimal.Decimal `json:"min_height"`
	Position  string          `json:"position,omitempty"`
}

func (z ZoneDefinition) String() string {
	return fmt.Sprintf("%sx%spx minimum", z.MinWidth.String(), z.MinHeight.String())
}

// SpatialRule checks every observed width/height pair of a property against a
// zone definition.
type SpatialRule struct {
	RuleBase
	Property string
	Zone     ZoneDefinition
}

// PatternRule scans free-text measurements for manipulative-UI indicator
// substrings. TextProperty narrows the scan to one field; empty means every
// text field in the bag.
type PatternRule struct {
	RuleBase
	TextProperty string
	Indicators   []string
}

// RuleDefinition is the flat on-disk catalog entry. The category-specific
// field must be present iff the category matches; Compile enforces that.
type RuleDefinition struct {
	ID                 string          `json:"id"`
	Category           RuleCategory    `json:"category"`
	Property           string          `json:"property,omitempty"`
	Operator           RuleOperator    `json:"operator,omitempty"`
	Value              string          `json:"value,omitempty"`
	Severity           RuleSeverity    `json:"severity"`
	Message            string          `json:"message"`
	TimingConstraintMs *int64          `json:"timing_constraint_ms,omitempty"`
	CountProperty      *string         `json:"count_property,omitempty"`
	ZoneDefinition     *ZoneDefinition `json:"zone_definition,omitempty"`
	PatternIndicators  []string        `json:"pattern_indicators,omitempty"`
}

func (t *TemporalRule) Definition() RuleDefinition {
	constraint := t.TimingConstraintMs
	return RuleDefinition{
		ID:                 t.ID,
		Category:           t.Category,
		Property:           t.MetricType,
		Operator:           t.Operator,
		Severity:           t.Severity,
		Message:            t.Message,
		TimingConstraintMs: &constraint,
	}
}

func (b *BehavioralRule) Definition() RuleDefinition {
	prop := b.CountProperty
	return RuleDefinition{
		ID:            b.ID,
		Category:      b.Category,
		Operator:      b.Operator,
		Value:         b.Threshold.String(),
		Severity:      b.Severity,
		Message:       b.Message,
		CountProperty: &prop,
	}
}

func (s *SpatialRule) Definition() RuleDefinition {
	zone := s.Zone
	return RuleDefinition{
		ID:             s.ID,
		Category:       s.Category,
		Property:       s.Property,
		Severity:       s.Severity,
		Message:        s.Message,
		ZoneDefinition: &zone,
	}
}

func (p *PatternRule) Definition() RuleDefinition {
	return RuleDefinition{
		ID:                p.ID,
		Category:          p.Category,
		Property:          p.TextProperty,
		Severity:          p.Severity,
		Message:           p.Message,
		PatternIndicators: append([]string(nil), p.Indicators...),
	}
}

// RuleCatalog holds the compiled rules in their fixed evaluation order.
type RuleCatalog struct {
	Version string
	rules   []CatalogRule
}

func (c *RuleCatalog) Rules() []CatalogRule {
	return c.rules
}

func (c *RuleCatalog) Len() int {
	return len(c.rules)
}

func (c *RuleCatalog) CountByCategory() map[RuleCategory]int {
	counts := map[RuleCategory]int{
		RuleCategoryTemporal:   0,
		RuleCategoryBehavioral: 0,
		RuleCategorySpatial:    0,
		RuleCategoryPattern:    0,
		RuleCategoryStatic:     0,
	}
	for _, rule := range c.rules {
		counts[rule.Base().Category]++
	}
	return counts
}

// Compile turns a flat definition into its concrete category type. A
// category/field mismatch is a defect in the catalog, not a runtime error, so
// it fails here (at load time), never during evaluation.
func (d RuleDefinition) Compile() (CatalogRule, error) {
	if strings.TrimSpace(d.ID) == "" {
		return nil, errors.New("rule id is required")
	}
	if _, err := ParseRuleSeverity(string(d.Severity)); err != nil {
		return nil, fmt.Errorf("rule %q: %w", d.ID, err)
	}
	if strings.TrimSpace(d.Message) == "" {
		return nil, fmt.Errorf("rule %q: message is required", d.ID)
	}

	base := RuleBase{
		ID:       d.ID,
		Category: d.Category,
		Severity: d.Severity,
		Message:  d.Message,
	}

	switch d.Category {
	case RuleCategoryTemporal:
		if d.TimingConstraintMs == nil {
			return nil, fmt.Errorf("rule %q: TEMPORAL rule requires timing_constraint_ms", d.ID)
		}
		if d.CountProperty != nil || d.ZoneDefinition != nil || len(d.PatternIndicators) > 0 {
			return nil, fmt.Errorf("rule %q: TEMPORAL rule carries fields of another category", d.ID)
		}
		if strings.TrimSpace(d.Property) == "" {
			return nil, fmt.Errorf("rule %q: TEMPORAL rule requires property (metric type)", d.ID)
		}
		if _, err := ParseRuleOperator(string(d.Operator)); err != nil {
			return nil, fmt.Errorf("rule %q: %w", d.ID, err)
		}
		if !d.Operator.Numeric() {
			return nil, fmt.Errorf("rule %q: operator %q cannot compare a timing measurement", d.ID, d.Operator)
		}
		return &TemporalRule{
			RuleBase:           base,
			MetricType:         d.Property,
			Operator:           d.Operator,
			TimingConstraintMs: *d.TimingConstraintMs,
		}, nil

	case RuleCategoryBehavioral:
		if d.CountProperty == nil || strings.TrimSpace(*d.CountProperty) == "" {
			return nil, fmt.Errorf("rule %q: BEHAVIORAL rule requires count_property", d.ID)
		}
		if d.TimingConstraintMs != nil || d.ZoneDefinition != nil || len(d.PatternIndicators) > 0 {
			return nil, fmt.Errorf("rule %q: BEHAVIORAL rule carries fields of another category", d.ID)
		}
		if _, err := ParseRuleOperator(string(d.Operator)); err != nil {
			return nil, fmt.Errorf("rule %q: %w", d.ID, err)
		}
		if !d.Operator.Numeric() {
			return nil, fmt.Errorf("rule %q: operator %q cannot compare a counted value", d.ID, d.Operator)
		}
		threshold, err := decimal.NewFromString(strings.TrimSpace(trailingUnitPattern.ReplaceAllString(d.Value, "")))
		if err != nil {
			return nil, fmt.Errorf("rule %q: BEHAVIORAL value %q is not numeric", d.ID, d.Value)
		}
		return &BehavioralRule{
			RuleBase:      base,
			CountProperty: *d.CountProperty,
			Operator:      d.Operator,
			Threshold:     threshold,
		}, nil

	case RuleCategorySpatial:
		if d.ZoneDefinition == nil {
			return nil, fmt.Errorf("rule %q: SPATIAL rule requires zone_definition", d.ID)
		}
		if d.TimingConstraintMs != nil || d.CountProperty != nil || len(d.PatternIndicators) > 0 {
			return nil, fmt.Errorf("rule %q: SPATIAL rule carries fields of another category", d.ID)
		}
		if strings.TrimSpace(d.Property) == "" {
			return nil, fmt.Errorf("rule %q: SPATIAL rule requires property", d.ID)
		}
		if d.ZoneDefinition.MinWidth.IsZero() && d.ZoneDefinition.MinHeight.IsZero() {
			return nil, fmt.Errorf("rule %q: zone_definition requires min_width or min_height", d.ID)
		}
		return &SpatialRule{
			RuleBase: base,
			Property: d.Property,
			Zone:     *d.ZoneDefinition,
		}, nil

	case RuleCategoryPattern:
		if len(d.PatternIndicators) == 0 {
			return nil, fmt.Errorf("rule %q: PATTERN rule requires pattern_indicators", d.ID)
		}
		if d.TimingConstraintMs != nil || d.CountProperty != nil || d.ZoneDefinition != nil {
			return nil, fmt.Errorf("rule %q: PATTERN rule carries fields of another category", d.ID)
		}
		return &PatternRule{
			RuleBase:     base,
			TextProperty: d.Property,
			Indicators:   append([]string(nil), d.PatternIndicators...),
		}, nil

	case RuleCategoryStatic:
		return nil, fmt.Errorf("rule %q: STATIC rules belong to the single-frame audit path", d.ID)
	}
	return nil, fmt.Errorf("rule %q: invalid rule category %q", d.ID, d.Category)
}

// CompileCatalog validates and compiles a full definition set. Duplicate ids
// fail fast.
func CompileCatalog(version string, definitions []RuleDefinition) (*RuleCatalog, error) {
	seen := make(map[string]bool, len(definitions))
	rules := make([]CatalogRule, 0, len(definitions))
	for _, definition := range definitions {
		if seen[definition.ID] {
			return nil, fmt.Errorf("rule %q: duplicate rule id", definition.ID)
		}
		seen[definition.ID] = true

		rule, err := definition.Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return &RuleCatalog{Version: version, rules: rules}, nil
}

var ruleCatalog *RuleCatalog

func GetRuleCatalog() *RuleCatalog {
	return ruleCatalog
}

// LoadRuleCatalog loads the catalog once at startup: RULE_CATALOG_PATH when
// set, the built-in catalog otherwise. Any malformed definition aborts the
// load.
func LoadRuleCatalog() error {
	path := strings.TrimSpace(os.Getenv("RULE_CATALOG_PATH"))
	if path == "" {
		catalog, err := CompileCatalog(defaultCatalogVersion, DefaultRuleDefinitions())
		if err != nil {
			return err
		}
		ruleCatalog = catalog
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rule catalog read: %w", err)
	}

	var file struct {
		Version string           `json:"version"`
		Rules   []RuleDefinition `json:"rules"`
	}
	if err := utils.UnmarshalFromJSON(data, &file); err != nil {
		return fmt.Errorf("rule catalog unmarshal: %w", err)
	}
	if len(file.Rules) == 0 {
		return errors.New("rule catalog is empty")
	}

	catalog, err := CompileCatalog(file.Version, file.Rules)
	if err != nil {
		return err
	}
	ruleCatalog = catalog
	return nil
}
