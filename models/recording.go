package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/utils"
	"gorm.io/gorm"
)

// Recording is one submitted audit job. The row is the unit of isolation:
// its status is mutated only by the lifecycle manager, and terminal rows
// (completed/failed) are never written again.
type Recording struct {
	ID           string          `gorm:"primary_key;size:36" json:"id"`
	SessionId    string          `gorm:"index;size:64" json:"session_id"`
	SourceType   RecordingSource `gorm:"size:16" json:"source_type"`
	SourceObject string          `gorm:"size:255" json:"-"`
	Status       RecordingStatus `gorm:"index;size:16" json:"status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	FrameCount   int             `json:"frame_count"`
	LockedAt     *time.Time      `json:"-"`
	LockedBy     *string         `gorm:"size:64" json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RecordingSnapshot is the read shape returned by the status endpoint.
// Reading it has no side effects; repeated reads of a terminal recording
// always return the same snapshot.
type RecordingSnapshot struct {
	Id           string          `json:"id"`
	Status       RecordingStatus `json:"status"`
	FrameCount   int             `json:"frame_count"`
	DurationMs   *int64          `json:"duration_ms,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

var ErrorRecordingNotClaimable = errors.New("recording is not in pending status")

func CreateRecording(ctx context.Context, sessionId string, sourceType RecordingSource, sourceObject string) (*Recording, error) {
	db := config.GetDB()

	recording := Recording{
		ID:           uuid.NewString(),
		SessionId:    sessionId,
		SourceType:   sourceType,
		SourceObject: sourceObject,
		Status:       RecordingStatusPending,
	}
	if err := db.WithContext(ctx).Create(&recording).Error; err != nil {
		return nil, err
	}
	return &recording, nil
}

func GetRecordingById(ctx context.Context, id string) (*Recording, error) {
	db := config.GetDB()

	var recording Recording
	err := db.WithContext(ctx).Where("id = ?", id).Take(&recording).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &recording, nil
}

func (r *Recording) Snapshot() *RecordingSnapshot {
	snapshot := RecordingSnapshot{
		Id:           r.ID,
		Status:       r.Status,
		FrameCount:   r.FrameCount,
		ErrorMessage: r.ErrorMessage,
	}
	if r.Status == RecordingStatusCompleted {
		d := r.DurationMs
		snapshot.DurationMs = &d
	}
	return &snapshot
}

// ClaimRecordingForProcessing performs the guarded pending -> processing
// transition. The conditional UPDATE is the single-writer guarantee: a second
// concurrent claim matches zero rows and is rejected without touching state.
func ClaimRecordingForProcessing(ctx context.Context, id string, workerId string) (*Recording, error) {
	db := config.GetDB()

	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&Recording{}).
		Where("id = ? AND status = ?", id, RecordingStatusPending).
		Updates(map[string]interface{}{
			"status":    RecordingStatusProcessing,
			"locked_at": &now,
			"locked_by": &workerId,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Either the recording does not exist or it already left pending.
		if _, err := GetRecordingById(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrorRecordingNotClaimable
	}
	return GetRecordingById(ctx, id)
}

// MarkRecordingCompleted writes the terminal completed state together with the
// final frame count and duration. It refuses to touch rows that are not in
// processing, so a terminal row can never be overwritten.
func MarkRecordingCompleted(ctx context.Context, id string, frameCount int, durationMs int64) error {
	db := config.GetDB()

	res := db.WithContext(ctx).Model(&Recording{}).
		Where("id = ? AND status = ?", id, RecordingStatusProcessing).
		Updates(map[string]interface{}{
			"status":        RecordingStatusCompleted,
			"frame_count":   frameCount,
			"duration_ms":   durationMs,
			"error_message": nil,
			"locked_at":     nil,
			"locked_by":     nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("recording is not in processing status")
	}
	return nil
}

// MarkRecordingFailed writes the terminal failed state with a captured message.
func MarkRecordingFailed(ctx context.Context, id string, message string) error {
	db := config.GetDB()

	res := db.WithContext(ctx).Model(&Recording{}).
		Where("id = ? AND status = ?", id, RecordingStatusProcessing).
		Updates(map[string]interface{}{
			"status":        RecordingStatusFailed,
			"error_message": &message,
			"locked_at":     nil,
			"locked_by":     nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("recording is not in processing status")
	}
	return nil
}

// ListPendingRecordings returns claimable rows for the direct processor,
// oldest first. Rows with a fresh lock are skipped.
func ListPendingRecordings(ctx context.Context, staleBefore time.Time, limit int) ([]Recording, error) {
	db := config.GetDB()

	var recordings []Recording
	err := db.WithContext(ctx).
		Where("status = ?", RecordingStatusPending).
		Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&recordings).Error
	if err != nil {
		return nil, err
	}
	return recordings, nil
}
