package models

import (
	"errors"
)

type RecordingStatus string

const (
	RecordingStatusPending    RecordingStatus = "pending"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
)

func (s RecordingStatus) Valid() bool {
	switch s {
	case RecordingStatusPending, RecordingStatusProcessing, RecordingStatusCompleted, RecordingStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether a recording in this status must never be mutated again.
func (s RecordingStatus) IsTerminal() bool {
	return s == RecordingStatusCompleted || s == RecordingStatusFailed
}

// CanTransition encodes the one-way lifecycle:
// pending -> processing -> {completed, failed}.
// There are no backward edges and no retry edge out of a terminal status.
func (s RecordingStatus) CanTransition(to RecordingStatus) bool {
	switch s {
	case RecordingStatusPending:
		return to == RecordingStatusProcessing
	case RecordingStatusProcessing:
		return to == RecordingStatusCompleted || to == RecordingStatusFailed
	}
	return false
}

type RecordingSource string

const (
	RecordingSourceVideo  RecordingSource = "video"
	RecordingSourceReplay RecordingSource = "replay"
)

func ParseRecordingSource(str string) (RecordingSource, error) {
	switch str {
	case "video":
		return RecordingSourceVideo, nil
	case "replay":
		return RecordingSourceReplay, nil
	}
	return "", errors.New("invalid recording source type")
}

type RuleCategory string

const (
	RuleCategoryTemporal   RuleCategory = "TEMPORAL"
	RuleCategoryBehavioral RuleCategory = "BEHAVIORAL"
	RuleCategorySpatial    RuleCategory = "SPATIAL"
	RuleCategoryPattern    RuleCategory = "PATTERN"

	// RuleCategoryStatic rules belong to the single-frame audit path, which is
	// served elsewhere. The catalog listing still reports the bucket.
	RuleCategoryStatic RuleCategory = "STATIC"
)

func ParseRuleCategory(str string) (RuleCategory, error) {
	switch str {
	case "TEMPORAL":
		return RuleCategoryTemporal, nil
	case "BEHAVIORAL":
		return RuleCategoryBehavioral, nil
	case "SPATIAL":
		return RuleCategorySpatial, nil
	case "PATTERN":
		return RuleCategoryPattern, nil
	case "STATIC":
		return RuleCategoryStatic, nil
	}
	return "", errors.New("invalid rule category")
}

type RuleOperator string

const (
	RuleOperatorEqual        RuleOperator = "="
	RuleOperatorNotEqual     RuleOperator = "!="
	RuleOperatorLess         RuleOperator = "<"
	RuleOperatorLessEqual    RuleOperator = "<="
	RuleOperatorGreater      RuleOperator = ">"
	RuleOperatorGreaterEqual RuleOperator = ">="
	RuleOperatorContains     RuleOperator = "contains"
)

// Numeric reports whether the operator compares two numbers. "contains" is a
// text-match operator and never applies to timed or counted measurements.
func (o RuleOperator) Numeric() bool {
	return o != RuleOperatorContains
}

func ParseRuleOperator(str string) (RuleOperator, error) {
	switch str {
	case "=":
		return RuleOperatorEqual, nil
	case "!=":
		return RuleOperatorNotEqual, nil
	case "<":
		return RuleOperatorLess, nil
	case "<=":
		return RuleOperatorLessEqual, nil
	case ">":
		return RuleOperatorGreater, nil
	case ">=":
		return RuleOperatorGreaterEqual, nil
	case "contains":
		return RuleOperatorContains, nil
	}
	return "", errors.New("invalid rule operator")
}

type RuleSeverity string

const (
	RuleSeverityError   RuleSeverity = "error"
	RuleSeverityWarning RuleSeverity = "warning"
	RuleSeverityInfo    RuleSeverity = "info"
)

func ParseRuleSeverity(str string) (RuleSeverity, error) {
	switch str {
	case "error":
		return RuleSeverityError, nil
	case "warning":
		return RuleSeverityWarning, nil
	case "info":
		return RuleSeverityInfo, nil
	}
	return "", errors.New("invalid rule severity")
}
