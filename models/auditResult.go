package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/utils"
	"gorm.io/gorm"
)

// Violation is derived data: a pure function of (rule, frame set, metric set).
// It is never stored on its own, only inside the aggregated result payload.
type Violation struct {
	RuleId          string       `json:"rule_id"`
	Category        RuleCategory `json:"-"`
	Severity        RuleSeverity `json:"severity"`
	Message         string       `json:"message"`
	MeasuredValue   *float64     `json:"measured_value,omitempty"`
	Threshold       *float64     `json:"threshold,omitempty"`
	Found           string       `json:"found,omitempty"`
	Expected        string       `json:"expected,omitempty"`
	PatternDetected string       `json:"pattern_detected,omitempty"`
}

type AuditSummary struct {
	TotalViolations      int `json:"total_violations"`
	Errors               int `json:"errors"`
	Warnings             int `json:"warnings"`
	TemporalMetricsCount int `json:"temporal_metrics_count"`
	FramesAnalyzed       int `json:"frames_analyzed"`
}

// AuditResult is the externally reported shape, available once the recording
// reaches completed. Bucket order inside each category preserves evaluator
// order.
type AuditResult struct {
	RecordingId          string       `json:"recording_id"`
	TotalFrames          int          `json:"total_frames"`
	DurationMs           int64        `json:"duration_ms"`
	TemporalViolations   []*Violation `json:"temporal_violations"`
	SpatialViolations    []*Violation `json:"spatial_violations"`
	BehavioralViolations []*Violation `json:"behavioral_violations"`
	PatternViolations    []*Violation `json:"pattern_violations"`
	Summary              AuditSummary `json:"summary"`
}

// AuditResultRecord persists the serialized result exactly once, at
// completion time. Serving the stored payload back verbatim makes repeated
// result reads byte-identical.
type AuditResultRecord struct {
	RecordingId string    `gorm:"primary_key;size:36" json:"recording_id"`
	Payload     []byte    `gorm:"type:json" json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

func SaveAuditResult(ctx context.Context, result *AuditResult) error {
	db := config.GetDB()

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	record := AuditResultRecord{
		RecordingId: result.RecordingId,
		Payload:     payload,
	}
	return db.WithContext(ctx).Create(&record).Error
}

// GetAuditResultPayload returns the stored result JSON as written at
// completion time.
func GetAuditResultPayload(ctx context.Context, recordingId string) ([]byte, error) {
	db := config.GetDB()

	var record AuditResultRecord
	err := db.WithContext(ctx).Where("recording_id = ?", recordingId).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.Payload, nil
}
