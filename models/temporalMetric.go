package models

import (
	"context"
	"time"

	"github.com/uxlens/uxaudit_backend/config"
)

// TemporalMetric is a reconstructed timed interval between a start and a
// completion condition observed across frames of one recording. Metrics are
// emitted only for closed intervals; there is no partial metric row.
type TemporalMetric struct {
	ID           int       `gorm:"primary_key" json:"id"`
	RecordingId  string    `gorm:"index;size:36" json:"recording_id"`
	MetricType   string    `gorm:"size:64" json:"metric_type"`
	StartFrameId int       `json:"start_frame_id"`
	EndFrameId   int       `json:"end_frame_id"`
	DurationMs   int64     `json:"duration_ms"`
	Context      string    `gorm:"size:255" json:"context"`
	CreatedAt    time.Time `json:"created_at"`
}

func SaveTemporalMetrics(ctx context.Context, metrics []*TemporalMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&metrics).Error
}

func GetTemporalMetricsByRecordingId(ctx context.Context, recordingId string) ([]*TemporalMetric, error) {
	db := config.GetDB()

	var metrics []*TemporalMetric
	err := db.WithContext(ctx).
		Where("recording_id = ?", recordingId).
		Order("id ASC").
		Find(&metrics).Error
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
