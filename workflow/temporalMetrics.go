package workflow

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/models"
)

// metricDefinition pairs the boolean state transitions that open and close an
// interval of one metric type.
type metricDefinition struct {
	Type   string
	Starts func(bag models.MeasurementBag) bool
	Ends   func(bag models.MeasurementBag) bool
}

func boolIs(bag models.MeasurementBag, property string, expected bool) bool {
	// An absent property is not an observation; only an explicit value
	// triggers a transition.
	v, ok := bag.Bool(property)
	return ok && v == expected
}

var metricDefinitions = []metricDefinition{
	{
		Type:   "interaction_feedback_time",
		Starts: func(bag models.MeasurementBag) bool { return boolIs(bag, "button_clicked", true) },
		Ends:   func(bag models.MeasurementBag) bool { return boolIs(bag, "loading_shown", true) },
	},
	{
		Type:   "loading_duration",
		Starts: func(bag models.MeasurementBag) bool { return boolIs(bag, "loading_shown", true) },
		Ends:   func(bag models.MeasurementBag) bool { return boolIs(bag, "loading_shown", false) },
	},
	{
		Type:   "navigation_settle_time",
		Starts: func(bag models.MeasurementBag) bool { return boolIs(bag, "navigation_started", true) },
		Ends:   func(bag models.MeasurementBag) bool { return boolIs(bag, "page_stable", true) },
	},
}

type openInterval struct {
	metricType   string
	startFrameId int
	startTsMs    int64
}

// CalculateTemporalMetrics derives duration metrics from the ordered frame
// sequence. At most one interval per metric type is open at a time; a start
// signal while an interval is already open is ignored. Closing requires a
// strictly later frame, so a state that flips within a single frame yields no
// interval. Multiple disjoint intervals of the same type are all reported.
func CalculateTemporalMetrics(logger *logrus.Logger, recordingId string, frames []*models.Frame) []*models.TemporalMetric {
	var metrics []*models.TemporalMetric
	open := map[string]*openInterval{}

	for _, frame := range frames {
		for _, def := range metricDefinitions {
			current := open[def.Type]

			if current != nil && def.Ends(frame.ExtractedValues) && frame.TimestampMs > current.startTsMs {
				metrics = append(metrics, &models.TemporalMetric{
					RecordingId:  recordingId,
					MetricType:   def.Type,
					StartFrameId: current.startFrameId,
					EndFrameId:   frame.ID,
					DurationMs:   frame.TimestampMs - current.startTsMs,
					Context:      fmt.Sprintf("opened at %dms, closed at %dms", current.startTsMs, frame.TimestampMs),
				})
				delete(open, def.Type)
				current = nil
			}

			if current == nil && def.Starts(frame.ExtractedValues) {
				open[def.Type] = &openInterval{
					metricType:   def.Type,
					startFrameId: frame.ID,
					startTsMs:    frame.TimestampMs,
				}
			}
		}
	}

	discardOpenIntervals(logger, recordingId, open)
	return metrics
}

// discardOpenIntervals drops intervals still open when the recording ends. An
// interval without an observed end has no measurable duration; it is not
// reported and not treated as a violation.
func discardOpenIntervals(logger *logrus.Logger, recordingId string, open map[string]*openInterval) {
	for metricType, interval := range open {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"module":       "workflow",
				"recording_id": recordingId,
				"metric_type":  metricType,
				"start_ts_ms":  interval.startTsMs,
			}).Info("discarding interval still open at end of recording")
		}
	}
}
