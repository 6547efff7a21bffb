package workflow

import (
	"github.com/uxlens/uxaudit_backend/models"
)

// AggregateResults partitions violations into their category buckets and
// derives the summary counts. Bucket order preserves the evaluator's output
// order; a bucket with no violations is an empty list, not null.
func AggregateResults(recording *models.Recording, frames []*models.Frame, metrics []*models.TemporalMetric, violations []*models.Violation, durationMs int64) *models.AuditResult {
	result := &models.AuditResult{
		RecordingId:          recording.ID,
		TotalFrames:          len(frames),
		DurationMs:           durationMs,
		TemporalViolations:   []*models.Violation{},
		SpatialViolations:    []*models.Violation{},
		BehavioralViolations: []*models.Violation{},
		PatternViolations:    []*models.Violation{},
	}

	for _, violation := range violations {
		switch violation.Category {
		case models.RuleCategoryTemporal:
			result.TemporalViolations = append(result.TemporalViolations, violation)
		case models.RuleCategorySpatial:
			result.SpatialViolations = append(result.SpatialViolations, violation)
		case models.RuleCategoryBehavioral:
			result.BehavioralViolations = append(result.BehavioralViolations, violation)
		case models.RuleCategoryPattern:
			result.PatternViolations = append(result.PatternViolations, violation)
		}

		result.Summary.TotalViolations++
		switch violation.Severity {
		case models.RuleSeverityError:
			result.Summary.Errors++
		case models.RuleSeverityWarning:
			result.Summary.Warnings++
		}
	}

	result.Summary.TemporalMetricsCount = len(metrics)
	result.Summary.FramesAnalyzed = len(frames)
	return result
}
