package workflow

import (
	"testing"

	"github.com/uxlens/uxaudit_backend/models"
)

func TestAggregateResultsPartitionsByCategory(t *testing.T) {
	recording := &models.Recording{ID: "rec-1"}
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{}),
		frameAt(2, 500, models.MeasurementBag{}),
	}
	metrics := []*models.TemporalMetric{{MetricType: "loading_duration", DurationMs: 1200}}
	violations := []*models.Violation{
		{RuleId: "a", Category: models.RuleCategoryTemporal, Severity: models.RuleSeverityError},
		{RuleId: "b", Category: models.RuleCategoryPattern, Severity: models.RuleSeverityWarning},
		{RuleId: "c", Category: models.RuleCategoryTemporal, Severity: models.RuleSeverityWarning},
		{RuleId: "d", Category: models.RuleCategorySpatial, Severity: models.RuleSeverityError},
	}

	result := AggregateResults(recording, frames, metrics, violations, 9000)

	if result.RecordingId != "rec-1" || result.TotalFrames != 2 || result.DurationMs != 9000 {
		t.Fatalf("unexpected header fields: %+v", result)
	}
	if len(result.TemporalViolations) != 2 {
		t.Fatalf("expected 2 temporal violations, got %d", len(result.TemporalViolations))
	}
	if result.TemporalViolations[0].RuleId != "a" || result.TemporalViolations[1].RuleId != "c" {
		t.Fatalf("bucket must preserve evaluator order, got %+v", result.TemporalViolations)
	}
	if len(result.SpatialViolations) != 1 || len(result.PatternViolations) != 1 {
		t.Fatalf("misplaced violations: %+v", result)
	}
	if len(result.BehavioralViolations) != 0 {
		t.Fatalf("empty bucket must stay empty, got %+v", result.BehavioralViolations)
	}

	if result.Summary.TotalViolations != 4 || result.Summary.Errors != 2 || result.Summary.Warnings != 2 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Summary.TemporalMetricsCount != 1 || result.Summary.FramesAnalyzed != 2 {
		t.Fatalf("unexpected summary counts: %+v", result.Summary)
	}
}

func TestAggregateResultsEmptyBucketsAreNotNil(t *testing.T) {
	result := AggregateResults(&models.Recording{ID: "rec-2"}, nil, nil, nil, 0)

	if result.TemporalViolations == nil || result.SpatialViolations == nil ||
		result.BehavioralViolations == nil || result.PatternViolations == nil {
		t.Fatalf("buckets must serialize as empty arrays, not null: %+v", result)
	}
	if result.Summary.TotalViolations != 0 {
		t.Fatalf("expected empty summary, got %+v", result.Summary)
	}
}
