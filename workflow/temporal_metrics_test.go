package workflow

import (
	"testing"

	"github.com/uxlens/uxaudit_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the interval
// semantics on in-memory frames; persistence is exercised separately.

func frameAt(id int, tsMs int64, values models.MeasurementBag) *models.Frame {
	return &models.Frame{
		ID:              id,
		RecordingId:     "rec-1",
		FrameNumber:     id - 1,
		TimestampMs:     tsMs,
		ExtractedValues: values,
	}
}

func TestInteractionFeedbackInterval(t *testing.T) {
	frames := []*models.Frame{
		frameAt(1, 1000, models.MeasurementBag{}),
		frameAt(2, 1500, models.MeasurementBag{"button_clicked": true}),
		frameAt(3, 2100, models.MeasurementBag{"loading_shown": true}),
	}

	metrics := CalculateTemporalMetrics(nil, "rec-1", frames)

	var feedback *models.TemporalMetric
	for _, m := range metrics {
		if m.MetricType == "interaction_feedback_time" {
			feedback = m
		}
	}
	if feedback == nil {
		t.Fatalf("expected an interaction_feedback_time metric, got %v", metrics)
	}
	if feedback.DurationMs != 600 {
		t.Fatalf("expected duration 600ms, got %d", feedback.DurationMs)
	}
	if feedback.StartFrameId != 2 || feedback.EndFrameId != 3 {
		t.Fatalf("expected interval frames 2..3, got %d..%d", feedback.StartFrameId, feedback.EndFrameId)
	}
}

func TestOpenIntervalAtEndIsDiscarded(t *testing.T) {
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"button_clicked": true}),
		frameAt(2, 500, models.MeasurementBag{}),
		frameAt(3, 1000, models.MeasurementBag{}),
	}

	metrics := CalculateTemporalMetrics(nil, "rec-1", frames)
	if len(metrics) != 0 {
		t.Fatalf("expected no metrics for an interval without an end, got %v", metrics)
	}
}

func TestSecondStartWhileOpenIsIgnored(t *testing.T) {
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"button_clicked": true}),
		frameAt(2, 200, models.MeasurementBag{"button_clicked": true}),
		frameAt(3, 900, models.MeasurementBag{"loading_shown": true}),
	}

	metrics := CalculateTemporalMetrics(nil, "rec-1", frames)

	count := 0
	for _, m := range metrics {
		if m.MetricType == "interaction_feedback_time" {
			count++
			if m.DurationMs != 900 {
				t.Fatalf("interval must anchor on the first start, got duration %d", m.DurationMs)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one interaction_feedback_time interval, got %d", count)
	}
}

func TestMultipleDisjointIntervals(t *testing.T) {
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"loading_shown": true}),
		frameAt(2, 1000, models.MeasurementBag{"loading_shown": false}),
		frameAt(3, 2000, models.MeasurementBag{"loading_shown": true}),
		frameAt(4, 2500, models.MeasurementBag{"loading_shown": false}),
	}

	metrics := CalculateTemporalMetrics(nil, "rec-1", frames)

	var durations []int64
	for _, m := range metrics {
		if m.MetricType == "loading_duration" {
			durations = append(durations, m.DurationMs)
		}
	}
	if len(durations) != 2 || durations[0] != 1000 || durations[1] != 500 {
		t.Fatalf("expected loading durations [1000 500], got %v", durations)
	}
}

func TestSameFrameStateFlipYieldsNoInterval(t *testing.T) {
	// The end signal needs a strictly later frame than the start signal.
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"button_clicked": true, "loading_shown": true}),
	}

	metrics := CalculateTemporalMetrics(nil, "rec-1", frames)
	for _, m := range metrics {
		if m.MetricType == "interaction_feedback_time" {
			t.Fatalf("unexpected interval with zero duration: %+v", m)
		}
	}
}

func TestAbsentPropertyIsNotAnObservation(t *testing.T) {
	// loading_shown missing is not loading_shown=false: the open interval
	// must survive frames that carry no value for the property.
	frames := []*models.Frame{
		frameAt(1, 0, models.MeasurementBag{"loading_shown": true}),
		frameAt(2, 400, models.MeasurementBag{}),
		frameAt(3, 800, models.MeasurementBag{"loading_shown": false}),
	}

	metrics := CalculateTemporalMetrics(nil, "rec-1", frames)

	found := false
	for _, m := range metrics {
		if m.MetricType == "loading_duration" {
			found = true
			if m.DurationMs != 800 {
				t.Fatalf("expected duration 800ms, got %d", m.DurationMs)
			}
		}
	}
	if !found {
		t.Fatalf("expected a loading_duration metric, got %v", metrics)
	}
}
