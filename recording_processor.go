package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/models"
	"github.com/uxlens/uxaudit_backend/workflow"
	"gorm.io/gorm"
)

// RecordingDirectProcessor drains pending recordings without Pub/Sub. It runs
// as a safety net even when push delivery is configured: a missed or
// misdelivered push would otherwise leave a recording pending forever.
// Processing is protected by the conditional status claim, so at-least-once
// pickup is safe.
type RecordingDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewRecordingDirectProcessor(db *gorm.DB, logger *logrus.Logger) *RecordingDirectProcessor {
	return &RecordingDirectProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 10,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (p *RecordingDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *RecordingDirectProcessor) processOnce(ctx context.Context) {
	staleBefore := time.Now().UTC().Add(-p.LockTTL)

	pending, err := models.ListPendingRecordings(ctx, staleBefore, p.BatchSize)
	if err != nil {
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"field": "RecordingDirectProcessor",
			}).Error("listing pending recordings failed: " + err.Error())
		}
		return
	}

	for _, recording := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := config.PipelineMessage{
			RecordingId: recording.ID,
			SessionId:   recording.SessionId,
			SourceType:  string(recording.SourceType),
		}
		// ProcessRecording claims the row itself; losing the race to a push
		// delivery is a clean skip, not an error.
		if err := workflow.ProcessRecording(ctx, p.Logger, msg, p.WorkerID); err != nil {
			if p.Logger != nil {
				p.Logger.WithFields(logrus.Fields{
					"field":        "RecordingDirectProcessor",
					"recording_id": recording.ID,
					"worker_id":    p.WorkerID,
				}).Error("direct processing failed: " + err.Error())
			}
		}
	}
}
